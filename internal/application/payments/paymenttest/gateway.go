// Package paymenttest provides an in-memory payment gateway that signs
// webhooks the way Stripe does.
package paymenttest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"promptmarket/internal/application/payments"
	"promptmarket/internal/pkg/money"

	"github.com/google/uuid"
)

const Secret = "whsec_test"

var ErrBadSignature = errors.New("paymenttest: signature mismatch")

// Gateway keeps intents in memory. Set the *Err fields to simulate outages.
type Gateway struct {
	mu        sync.Mutex
	Intents   map[string]*payments.Intent
	Refunds   []string
	Transfers []string
	Canceled  []string
	// Keys holds the idempotency key of every CreateIntent call.
	Keys      []string
	Created   int
	CreateErr error
	RefundErr error
	CancelErr error
}

func New() *Gateway {
	return &Gateway{Intents: map[string]*payments.Intent{}}
}

func (g *Gateway) Name() string           { return "stripe" }
func (g *Gateway) PublishableKey() string { return "pk_test_fake" }

func (g *Gateway) CreateIntent(_ context.Context, p payments.IntentParams) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Keys = append(g.Keys, p.IdempotencyKey)
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.Created++
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	meta := map[string]string{}
	for k, v := range p.Metadata {
		meta[k] = v
	}
	in := &payments.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       p.Amount,
		Currency:     p.Currency,
		Metadata:     meta,
	}
	g.Intents[id] = in
	cp := *in
	return &cp, nil
}

func (g *Gateway) RetrieveIntent(_ context.Context, id string) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.Intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment_intent: %s", id)
	}
	cp := *in
	return &cp, nil
}

// SetStatus changes the stored status of an intent, as if the buyer paid.
func (g *Gateway) SetStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.Intents[id]; ok {
		in.Status = status
	}
}

// CancelIntent rejects intents that are already paid or canceled, as Stripe does.
func (g *Gateway) CancelIntent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CancelErr != nil {
		return g.CancelErr
	}
	in, ok := g.Intents[id]
	if !ok {
		return fmt.Errorf("no such payment_intent: %s", id)
	}
	if in.Status == payments.IntentSucceeded || in.Status == payments.IntentCanceled {
		return fmt.Errorf("payment_intent %s cannot be canceled in status %s", id, in.Status)
	}
	in.Status = payments.IntentCanceled
	g.Canceled = append(g.Canceled, id)
	return nil
}

func (g *Gateway) Refund(_ context.Context, intentID string, _ money.Cents, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RefundErr != nil {
		return "", g.RefundErr
	}
	g.Refunds = append(g.Refunds, intentID)
	return "re_" + intentID, nil
}

// Transfer records a payout keyed by its idempotency key.
func (g *Gateway) Transfer(_ context.Context, destination string, amount money.Cents, _ string, key string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Transfers = append(g.Transfers, fmt.Sprintf("%s:%s:%d", key, destination, amount))
	return "tr_" + key, nil
}

type wireEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string            `json:"id"`
			Status           string            `json:"status"`
			Amount           int64             `json:"amount"`
			Currency         string            `json:"currency"`
			Metadata         map[string]string `json:"metadata"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error,omitempty"`
		} `json:"object"`
	} `json:"data"`
}

// Payload builds a webhook body for the intent.
func Payload(eventType string, in *payments.Intent) []byte {
	var ev wireEvent
	ev.ID = "evt_" + in.ID
	ev.Type = eventType
	ev.Data.Object.ID = in.ID
	ev.Data.Object.Status = in.Status
	ev.Data.Object.Amount = int64(in.Amount)
	ev.Data.Object.Currency = in.Currency
	ev.Data.Object.Metadata = in.Metadata
	if in.FailureMessage != "" {
		ev.Data.Object.LastPaymentError = &struct {
			Message string `json:"message"`
		}{in.FailureMessage}
	}
	b, _ := json.Marshal(ev)
	return b
}

// Sign returns a Stripe-Signature header value for payload.
func Sign(payload []byte, secret string) string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func (g *Gateway) ConstructEvent(payload []byte, signature string) (*payments.Event, error) {
	var ts, sig string
	for _, part := range strings.Split(signature, ",") {
		k, v, _ := strings.Cut(part, "=")
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	mac := hmac.New(sha256.New, []byte(Secret))
	mac.Write([]byte(ts + "." + string(payload)))
	if !hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(sig)) {
		return nil, ErrBadSignature
	}
	var ev wireEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	obj := ev.Data.Object
	in := &payments.Intent{
		ID:       obj.ID,
		Status:   obj.Status,
		Amount:   money.Cents(obj.Amount),
		Currency: obj.Currency,
		Metadata: obj.Metadata,
	}
	if obj.LastPaymentError != nil {
		in.FailureMessage = obj.LastPaymentError.Message
	}
	return &payments.Event{ID: ev.ID, Type: ev.Type, Intent: in}, nil
}
