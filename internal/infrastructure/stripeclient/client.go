// Package stripeclient adapts stripe-go to the payment gateway and payout
// provider interfaces.
package stripeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"promptmarket/internal/application/payments"
	"promptmarket/internal/metrics"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/money"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Client talks to Stripe with a per-instance API key instead of the
// package-level stripe.Key.
type Client struct {
	api            *client.API
	publishableKey string
	webhookSecret  string
}

type Options struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	// Backends overrides the HTTP backends, for tests.
	Backends *stripe.Backends
}

func New(o Options) *Client {
	return &Client{
		api:            client.New(o.SecretKey, o.Backends),
		publishableKey: o.PublishableKey,
		webhookSecret:  o.WebhookSecret,
	}
}

func (c *Client) Name() string           { return "stripe" }
func (c *Client) PublishableKey() string { return c.publishableKey }

func (c *Client) CreateIntent(ctx context.Context, p payments.IntentParams) (*payments.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(p.Amount)),
		Currency: stripe.String(strings.ToLower(p.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	var pi *stripe.PaymentIntent
	err := observe("create_intent", func() (err error) {
		pi, err = c.api.PaymentIntents.New(params)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return toIntent(pi), nil
}

func (c *Client) RetrieveIntent(ctx context.Context, id string) (*payments.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	var pi *stripe.PaymentIntent
	err := observe("retrieve_intent", func() (err error) {
		pi, err = c.api.PaymentIntents.Get(id, params)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return toIntent(pi), nil
}

// CancelIntent cancels an unpaid intent as abandoned.
func (c *Client) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("cancel-" + id)
	err := observe("cancel_intent", func() error {
		_, err := c.api.PaymentIntents.Cancel(id, params)
		return err
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Refund refunds amount of the intent's charge. Stripe only accepts a fixed
// set of reasons, so the free-text reason travels as metadata.
func (c *Client) Refund(ctx context.Context, intentID string, amount money.Cents, reason string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(int64(amount)),
	}
	params.Context = ctx
	params.AddMetadata("reason", reason)
	params.SetIdempotencyKey("refund-" + intentID)
	var r *stripe.Refund
	err := observe("refund", func() (err error) {
		r, err = c.api.Refunds.New(params)
		return err
	})
	if err != nil {
		return "", classify(err)
	}
	return r.ID, nil
}

// Transfer moves amount to a connected account.
func (c *Client) Transfer(ctx context.Context, destination string, amount money.Cents, currency, idempotencyKey string) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(int64(amount)),
		Currency:    stripe.String(strings.ToLower(currency)),
		Destination: stripe.String(destination),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	var tr *stripe.Transfer
	err := observe("transfer", func() (err error) {
		tr, err = c.api.Transfers.New(params)
		return err
	})
	if err != nil {
		return "", classify(err)
	}
	return tr.ID, nil
}

func (c *Client) ConstructEvent(payload []byte, signature string) (*payments.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	out := &payments.Event{ID: ev.ID, Type: string(ev.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && ev.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Intent = toIntent(&pi)
	}
	return out, nil
}

func toIntent(pi *stripe.PaymentIntent) *payments.Intent {
	in := &payments.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       money.Cents(pi.Amount),
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		in.FailureMessage = pi.LastPaymentError.Msg
	}
	return in
}

func observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return err
}

// classify marks rate limits, Stripe 5xx and transport failures as temporary.
func classify(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500 {
			return apperror.Temporary(err)
		}
		return err
	}
	return apperror.Temporary(err)
}
