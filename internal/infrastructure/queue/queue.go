// Package queue wires asynq clients and servers to the shared Redis instance.
package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const (
	QueueEmails = "emails"
	QueueEvents = "events"
)

// RedisOpt parses REDIS_URL into asynq connection options.
func RedisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for queue: %w", err)
	}
	return opt, nil
}

func NewClient(redisURL string) (*asynq.Client, error) {
	opt, err := RedisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return asynq.NewClient(opt), nil
}

// NewServer builds a task server that drains the emails queue ahead of events.
func NewServer(redisURL string, concurrency int) (*asynq.Server, error) {
	opt, err := RedisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueEmails: 10,
			QueueEvents: 5,
		},
		Logger: zerologAdapter{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	}), nil
}

// zerologAdapter routes asynq's internal logging through zerolog.
type zerologAdapter struct{}

func (zerologAdapter) Debug(args ...interface{}) { log.Debug().Msg(fmt.Sprint(args...)) }
func (zerologAdapter) Info(args ...interface{})  { log.Info().Msg(fmt.Sprint(args...)) }
func (zerologAdapter) Warn(args ...interface{})  { log.Warn().Msg(fmt.Sprint(args...)) }
func (zerologAdapter) Error(args ...interface{}) { log.Error().Msg(fmt.Sprint(args...)) }
func (zerologAdapter) Fatal(args ...interface{}) { log.Fatal().Msg(fmt.Sprint(args...)) }
