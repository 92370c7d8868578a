// Package notifications fans purchase and payout events out to buyers,
// sellers and downstream consumers.
package notifications

import (
	"context"
	"errors"

	"promptmarket/internal/domain"

	"github.com/rs/zerolog/log"
)

// PurchaseEvent carries everything a channel needs without further lookups.
type PurchaseEvent struct {
	Purchase *domain.Purchase
	Buyer    *domain.User
	Seller   *domain.User
	Listing  *domain.Listing
}

type PayoutEvent struct {
	Payout *domain.Payout
	Seller *domain.User
}

// Dispatcher delivers marketplace notifications. Implementations must not
// assume the caller will retry; a returned error is only logged.
type Dispatcher interface {
	PurchaseCompleted(ctx context.Context, ev PurchaseEvent) error
	PurchaseRefunded(ctx context.Context, ev PurchaseEvent) error
	PayoutProcessed(ctx context.Context, ev PayoutEvent) error
}

// Noop drops every notification.
type Noop struct{}

func (Noop) PurchaseCompleted(context.Context, PurchaseEvent) error { return nil }
func (Noop) PurchaseRefunded(context.Context, PurchaseEvent) error  { return nil }
func (Noop) PayoutProcessed(context.Context, PayoutEvent) error     { return nil }

// Multi sends to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) PurchaseCompleted(ctx context.Context, ev PurchaseEvent) error {
	var errs []error
	for _, d := range m {
		errs = append(errs, d.PurchaseCompleted(ctx, ev))
	}
	return errors.Join(errs...)
}

func (m Multi) PurchaseRefunded(ctx context.Context, ev PurchaseEvent) error {
	var errs []error
	for _, d := range m {
		errs = append(errs, d.PurchaseRefunded(ctx, ev))
	}
	return errors.Join(errs...)
}

func (m Multi) PayoutProcessed(ctx context.Context, ev PayoutEvent) error {
	var errs []error
	for _, d := range m {
		errs = append(errs, d.PayoutProcessed(ctx, ev))
	}
	return errors.Join(errs...)
}

// SelfPurchase reports whether buyer and seller are the same account; such
// events are never sent.
func (ev PurchaseEvent) SelfPurchase() bool {
	return ev.Buyer != nil && ev.Seller != nil && ev.Buyer.ID == ev.Seller.ID
}

// Safe wraps d so that a nil dispatcher is a no-op and failures are logged
// rather than returned to the caller.
func Safe(d Dispatcher) Dispatcher {
	if d == nil {
		return Noop{}
	}
	if _, ok := d.(safe); ok {
		return d
	}
	return safe{d}
}

type safe struct{ next Dispatcher }

func (s safe) PurchaseCompleted(ctx context.Context, ev PurchaseEvent) error {
	if ev.SelfPurchase() {
		return nil
	}
	if err := s.next.PurchaseCompleted(ctx, ev); err != nil {
		log.Warn().Err(err).Str("purchase_id", ev.Purchase.ID.String()).Msg("purchase completed notification failed")
	}
	return nil
}

func (s safe) PurchaseRefunded(ctx context.Context, ev PurchaseEvent) error {
	if err := s.next.PurchaseRefunded(ctx, ev); err != nil {
		log.Warn().Err(err).Str("purchase_id", ev.Purchase.ID.String()).Msg("purchase refunded notification failed")
	}
	return nil
}

func (s safe) PayoutProcessed(ctx context.Context, ev PayoutEvent) error {
	if err := s.next.PayoutProcessed(ctx, ev); err != nil {
		log.Warn().Err(err).Str("payout_id", ev.Payout.ID.String()).Msg("payout notification failed")
	}
	return nil
}
