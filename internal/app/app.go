// Package app builds the shared dependency graph used by the API server and
// the worker commands.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"promptmarket/internal/application/analytics"
	"promptmarket/internal/application/auth"
	"promptmarket/internal/application/emails"
	"promptmarket/internal/application/listings"
	"promptmarket/internal/application/notifications"
	"promptmarket/internal/application/payments"
	"promptmarket/internal/application/payouts"
	"promptmarket/internal/application/purchases"
	"promptmarket/internal/application/reviews"
	"promptmarket/internal/application/taxonomy"
	"promptmarket/internal/application/user"
	"promptmarket/internal/config"
	"promptmarket/internal/infrastructure/cache"
	"promptmarket/internal/infrastructure/database"
	"promptmarket/internal/infrastructure/events"
	"promptmarket/internal/infrastructure/queue"
	"promptmarket/internal/infrastructure/stripeclient"
	"promptmarket/internal/metrics"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Container holds the connections and services of one process.
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	SQL    *sql.DB
	Rdb    *redis.Client
	Emails emails.Sender

	Auth          *auth.GormUserFinder
	Users         *user.Service
	Listings      *listings.Service
	Taxonomy      *taxonomy.Service
	Purchases     *purchases.Service
	Payments      *payments.Service
	Payouts       *payouts.Service
	Reviews       *reviews.Service
	Analytics     *analytics.Service
	Notifications notifications.Dispatcher

	closers []func() error
}

// New opens Postgres, Redis, the task queue client and (when configured) the
// Kafka publisher, then wires every service.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	metrics.Register()
	c := &Container{Config: cfg}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	c.DB, c.SQL = db, sqlDB
	c.closers = append(c.closers, sqlDB.Close)

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c.Rdb = redis.NewClient(opt)
	if err := c.Rdb.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	c.closers = append(c.closers, c.Rdb.Close)

	dispatchers := notifications.Multi{}
	qc, err := queue.NewClient(cfg.RedisURL)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closers = append(c.closers, qc.Close)
	dispatchers = append(dispatchers, &notifications.Queue{Client: qc, Currency: cfg.Currency, MaxRetry: 5})

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn().Err(err).Strs("brokers", cfg.KafkaBrokers).Msg("kafka publisher disabled")
		} else {
			c.closers = append(c.closers, pub.Close)
			dispatchers = append(dispatchers, pub)
		}
	}
	c.Notifications = notifications.Safe(dispatchers)

	if cfg.SendinblueAPIKey != "" {
		c.Emails = &emails.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom}
	}

	c.Wire(stripeclient.New(stripeclient.Options{
		SecretKey:      cfg.StripeSecretKey,
		PublishableKey: cfg.StripePublishableKey,
		WebhookSecret:  cfg.StripeWebhookSecret,
	}))
	return c, nil
}

// PaymentBackend is the gateway used for checkout, refunds and payouts.
type PaymentBackend interface {
	payments.Gateway
	payouts.Provider
}

// Wire builds the services on top of the container's connections.
func (c *Container) Wire(stripe PaymentBackend) {
	cfg := c.Config
	c.Analytics = &analytics.Service{DB: c.DB, Cache: &cache.Cache{Rdb: c.Rdb}, TTL: cfg.AnalyticsCacheTTL}
	c.Auth = &auth.GormUserFinder{DB: c.DB}
	c.Users = &user.Service{DB: c.DB, Rdb: c.Rdb, Emails: c.Emails}
	c.Taxonomy = &taxonomy.Service{DB: c.DB}
	c.Purchases = &purchases.Service{
		DB:             c.DB,
		CommissionRate: cfg.CommissionRate,
		Notifier:       c.Notifications,
		Cache:          c.Analytics,
	}
	c.Listings = &listings.Service{DB: c.DB, Purchases: c.Purchases}
	c.Payments = &payments.Service{
		DB:        c.DB,
		Gateway:   stripe,
		Purchases: c.Purchases,
		Currency:  cfg.Currency,
	}
	c.Payouts = &payouts.Service{
		DB:            c.DB,
		Provider:      stripe,
		Notifier:      c.Notifications,
		Cache:         c.Analytics,
		Currency:      cfg.Currency,
		Delay:         cfg.PayoutDelay,
		RetryAttempts: cfg.PayoutRetryAttempts,
		RetryDelay:    time.Second,
	}
	c.Reviews = &reviews.Service{DB: c.DB, Cache: c.Analytics}
}

// TaskServer builds the asynq server and mux that deliver notification emails.
func (c *Container) TaskServer(concurrency int) (*asynq.Server, *asynq.ServeMux, error) {
	srv, err := queue.NewServer(c.Config.RedisURL, concurrency)
	if err != nil {
		return nil, nil, err
	}
	sender := c.Emails
	if sender == nil {
		sender = emails.LogSender{}
	}
	mux := asynq.NewServeMux()
	(&notifications.TaskHandler{Emails: sender}).Register(mux)
	return srv, mux, nil
}

// Close releases connections in reverse order of opening.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
	c.closers = nil
}
