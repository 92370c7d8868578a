package payments

import (
	"context"

	"promptmarket/internal/pkg/money"
)

// Gateway statuses and event types the service reacts to.
const (
	IntentSucceeded      = "succeeded"
	IntentCanceled       = "canceled"
	IntentProcessing     = "processing"
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// IntentParams describes a charge to open at the gateway.
type IntentParams struct {
	Amount         money.Cents
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the gateway's view of a charge attempt.
type Intent struct {
	ID             string
	ClientSecret   string
	Status         string
	Amount         money.Cents
	Currency       string
	Metadata       map[string]string
	FailureMessage string
}

// Event is a verified webhook notification.
type Event struct {
	ID     string
	Type   string
	Intent *Intent
}

// Gateway is the external payment processor.
type Gateway interface {
	CreateIntent(ctx context.Context, p IntentParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	// CancelIntent stops an open intent from being paid.
	CancelIntent(ctx context.Context, id string) error
	Refund(ctx context.Context, intentID string, amount money.Cents, reason string) (string, error)
	// ConstructEvent verifies signature over payload and decodes the event.
	ConstructEvent(payload []byte, signature string) (*Event, error)
	PublishableKey() string
	Name() string
}
