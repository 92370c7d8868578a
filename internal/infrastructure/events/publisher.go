// Package events publishes marketplace domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"promptmarket/internal/application/notifications"
	"promptmarket/internal/metrics"
	"promptmarket/internal/pkg/money"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

const (
	EventPurchaseCompleted = "purchase.completed"
	EventPurchaseRefunded  = "purchase.refunded"
	EventPayoutProcessed   = "payout.processed"
)

// Envelope is the JSON value of every message on the topic.
type Envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type PurchaseData struct {
	PurchaseID     string      `json:"purchase_id"`
	OrderNumber    string      `json:"order_number"`
	BuyerID        string      `json:"buyer_id"`
	SellerID       string      `json:"seller_id"`
	ListingID      string      `json:"listing_id"`
	Price          money.Cents `json:"price"`
	PlatformFee    money.Cents `json:"platform_fee"`
	SellerEarnings money.Cents `json:"seller_earnings"`
	Status         string      `json:"status"`
}

type PayoutData struct {
	PayoutID          string      `json:"payout_id"`
	SellerID          string      `json:"seller_id"`
	Amount            money.Cents `json:"amount"`
	Currency          string      `json:"currency"`
	ExternalReference *string     `json:"external_reference"`
}

// Publisher is a notifications.Dispatcher backed by a Kafka sync producer.
// Messages are keyed by seller so one seller's events stay ordered.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

var _ notifications.Dispatcher = (*Publisher)(nil)

// NewPublisher connects to brokers.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers list is empty")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is empty")
	}
	producer, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, err
	}
	return NewPublisherWithProducer(producer, topic), nil
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic, now: time.Now}
}

func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func (p *Publisher) PurchaseCompleted(ctx context.Context, ev notifications.PurchaseEvent) error {
	return p.publish(ctx, EventPurchaseCompleted, ev.Purchase.SellerID.String(), purchaseData(ev))
}

func (p *Publisher) PurchaseRefunded(ctx context.Context, ev notifications.PurchaseEvent) error {
	return p.publish(ctx, EventPurchaseRefunded, ev.Purchase.SellerID.String(), purchaseData(ev))
}

func (p *Publisher) PayoutProcessed(ctx context.Context, ev notifications.PayoutEvent) error {
	return p.publish(ctx, EventPayoutProcessed, ev.Payout.SellerID.String(), PayoutData{
		PayoutID:          ev.Payout.ID.String(),
		SellerID:          ev.Payout.SellerID.String(),
		Amount:            ev.Payout.Amount,
		Currency:          ev.Payout.Currency,
		ExternalReference: ev.Payout.ExternalReference,
	})
}

func purchaseData(ev notifications.PurchaseEvent) PurchaseData {
	pu := ev.Purchase
	return PurchaseData{
		PurchaseID:     pu.ID.String(),
		OrderNumber:    pu.OrderNumber,
		BuyerID:        pu.BuyerID.String(),
		SellerID:       pu.SellerID.String(),
		ListingID:      pu.ListingID.String(),
		Price:          pu.Price,
		PlatformFee:    pu.PlatformFee,
		SellerEarnings: pu.SellerEarnings,
		Status:         pu.Status,
	}
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(Envelope{Type: eventType, OccurredAt: p.now().UTC(), Data: data})
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(eventType)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		metrics.Notifications.WithLabelValues("kafka", "error").Inc()
		return err
	}
	metrics.Notifications.WithLabelValues("kafka", "ok").Inc()
	log.Debug().Str("event", eventType).Int32("partition", partition).Int64("offset", offset).Msg("event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
