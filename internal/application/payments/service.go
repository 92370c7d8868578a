package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promptmarket/internal/application/purchases"
	"promptmarket/internal/domain"
	"promptmarket/internal/metrics"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MethodFree labels purchases of free prompts, which never reach the gateway.
const MethodFree = "free"

// Service reconciles gateway charges with purchase records.
type Service struct {
	DB        *gorm.DB
	Gateway   Gateway
	Purchases *purchases.Service
	Currency  string
	Now       func() time.Time
}

// IntentResult is returned to the client to finish payment in the browser.
type IntentResult struct {
	PaymentIntentID string      `json:"payment_intent_id"`
	ClientSecret    string      `json:"client_secret"`
	Amount          money.Cents `json:"amount"`
	Currency        string      `json:"currency"`
	PublishableKey  string      `json:"publishable_key"`
	PurchaseID      uuid.UUID   `json:"purchase_id"`
	OrderNumber     string      `json:"order_number"`
	Status          string      `json:"status"`
}

// PurchaseSummary is the confirmation payload.
type PurchaseSummary struct {
	PurchaseID  uuid.UUID   `json:"purchase_id"`
	OrderNumber string      `json:"order_number"`
	ListingID   uuid.UUID   `json:"listing_id"`
	Amount      money.Cents `json:"amount"`
	Status      string      `json:"status"`
	PurchasedAt *time.Time  `json:"purchased_at"`
}

func summarize(p *domain.Purchase) *PurchaseSummary {
	return &PurchaseSummary{
		PurchaseID:  p.ID,
		OrderNumber: p.OrderNumber,
		ListingID:   p.ListingID,
		Amount:      p.Price,
		Status:      p.Status,
		PurchasedAt: p.PurchasedAt,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) PublicKey() string {
	return s.Gateway.PublishableKey()
}

// CreateIntent opens (or resumes) the buyer's purchase of listingID and a
// gateway charge for it. Free prompts complete immediately.
func (s *Service) CreateIntent(ctx context.Context, buyerID, listingID uuid.UUID, amount *money.Cents) (*IntentResult, error) {
	purchase, resumed, err := s.Purchases.InitiateOrResume(ctx, buyerID, listingID, amount)
	if err != nil {
		return nil, err
	}

	if purchase.Price == 0 {
		done, err := s.Purchases.Complete(ctx, purchase.ID, MethodFree, "free:"+purchase.ID.String())
		if err != nil {
			return nil, err
		}
		return &IntentResult{
			Amount:         0,
			Currency:       s.Currency,
			PublishableKey: s.Gateway.PublishableKey(),
			PurchaseID:     done.ID,
			OrderNumber:    done.OrderNumber,
			Status:         done.Status,
		}, nil
	}

	if resumed && purchase.PaymentReference != nil {
		if intent, ok := s.reusableIntent(ctx, *purchase.PaymentReference); ok {
			return s.intentResult(purchase, intent), nil
		}
	}

	// IntentAttempts advances only when an intent is recorded below.
	intent, err := s.Gateway.CreateIntent(ctx, IntentParams{
		Amount:   purchase.Price,
		Currency: s.Currency,
		Metadata: map[string]string{
			domain.MetaListingID:   listingID.String(),
			domain.MetaPurchaseID:  purchase.ID.String(),
			domain.MetaOrderNumber: purchase.OrderNumber,
			"buyer_id":             buyerID.String(),
		},
		IdempotencyKey: fmt.Sprintf("purchase-intent-%s-%d", purchase.ID, purchase.IntentAttempts+1),
	})
	if err != nil {
		log.Error().Err(err).
			Str("user_id", buyerID.String()).
			Str("listing_id", listingID.String()).
			Str("purchase_id", purchase.ID.String()).
			Int64("amount", int64(purchase.Price)).
			Msg("payment gateway create intent failed")
		return nil, apperror.Wrap(ErrGatewayUnavailable, err)
	}

	payment := &domain.Payment{
		UserID:        buyerID,
		Amount:        purchase.Price,
		Currency:      s.Currency,
		Gateway:       s.Gateway.Name(),
		TransactionID: intent.ID,
		Status:        domain.PaymentPending,
		Metadata: datatypes.JSONMap{
			domain.MetaListingID:   listingID.String(),
			domain.MetaPurchaseID:  purchase.ID.String(),
			domain.MetaOrderNumber: purchase.OrderNumber,
		},
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Purchase{}).Where("id = ?", purchase.ID).
			Updates(map[string]interface{}{
				"payment_reference": intent.ID,
				"intent_attempts":   gorm.Expr("intent_attempts + 1"),
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return s.intentResult(purchase, intent), nil
}

// reusableIntent returns the purchase's existing open intent, if any.
func (s *Service) reusableIntent(ctx context.Context, intentID string) (*Intent, bool) {
	intent, err := s.Gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		log.Warn().Err(err).Str("intent_id", intentID).Msg("retrieve intent for resume")
		return nil, false
	}
	if intent.Status == IntentCanceled || intent.Status == IntentSucceeded {
		return nil, false
	}
	return intent, true
}

func (s *Service) intentResult(p *domain.Purchase, intent *Intent) *IntentResult {
	return &IntentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          p.Price,
		Currency:        s.Currency,
		PublishableKey:  s.Gateway.PublishableKey(),
		PurchaseID:      p.ID,
		OrderNumber:     p.OrderNumber,
		Status:          p.Status,
	}
}

// ConfirmIntent is the client-driven confirmation path. The gateway is the
// source of truth for the charge status.
func (s *Service) ConfirmIntent(ctx context.Context, buyerID uuid.UUID, intentID string) (*PurchaseSummary, error) {
	payment, err := s.paymentByTransaction(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != buyerID {
		return nil, ErrForbidden
	}
	intent, err := s.Gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		log.Error().Err(err).Str("user_id", buyerID.String()).Str("intent_id", intentID).Msg("payment gateway retrieve intent failed")
		return nil, apperror.Wrap(ErrGatewayUnavailable, err)
	}
	if intent.Status != IntentSucceeded {
		return nil, ErrNotSucceeded
	}
	p, err := s.settle(ctx, payment, intent.ID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PurchaseCompleted {
		return nil, ErrPurchaseNotCompleted
	}
	return summarize(p), nil
}

// settle marks the payment completed and completes its purchase. Both steps
// are no-ops when already applied, so webhook and confirm may race safely.
// A payment failed by an earlier attempt on the same intent is completed too.
func (s *Service) settle(ctx context.Context, payment *domain.Payment, intentID string) (*domain.Purchase, error) {
	now := s.now()
	if err := s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status IN ?", payment.ID, []string{domain.PaymentPending, domain.PaymentFailed}).
		Updates(map[string]interface{}{"status": domain.PaymentCompleted, "processed_at": now}).Error; err != nil {
		return nil, err
	}
	purchaseID := payment.PurchaseID()
	if purchaseID == uuid.Nil {
		return nil, fmt.Errorf("payment %s has no purchase metadata", payment.ID)
	}
	return s.completePurchase(ctx, purchaseID, intentID)
}

func (s *Service) completePurchase(ctx context.Context, purchaseID uuid.UUID, intentID string) (*domain.Purchase, error) {
	p, err := s.Purchases.Complete(ctx, purchaseID, s.Gateway.Name(), intentID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, purchases.ErrInvalidState) {
		return nil, err
	}
	current, getErr := s.Purchases.Get(ctx, purchaseID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status != domain.PurchaseCompleted {
		// Paid after the purchase expired or failed; an operator must refund or reconcile.
		log.Error().Str("purchase_id", purchaseID.String()).Str("status", current.Status).
			Str("intent_id", intentID).Msg("payment succeeded for a purchase that is no longer pending")
	}
	return current, nil
}

// HandleWebhook verifies and applies a gateway notification. Unknown event
// types are accepted and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	event, err := s.Gateway.ConstructEvent(payload, signature)
	if err != nil {
		log.Warn().Err(err).Msg("webhook signature verification failed")
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return apperror.Wrap(ErrInvalidSignature, err)
	}

	switch event.Type {
	case EventIntentSucceeded:
		err = s.onIntentSucceeded(ctx, event.Intent)
	case EventIntentFailed:
		err = s.onIntentFailed(ctx, event.Intent)
	default:
		log.Info().Str("event_id", event.ID).Str("type", event.Type).Msg("ignoring webhook event")
		metrics.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Str("type", event.Type).Msg("webhook processing failed")
		metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		return apperror.Wrap(ErrWebhookProcessing, err)
	}
	metrics.WebhookEvents.WithLabelValues(event.Type, "applied").Inc()
	return nil
}

func (s *Service) onIntentSucceeded(ctx context.Context, intent *Intent) error {
	if intent == nil {
		return errors.New("event has no payment intent")
	}
	payment, err := s.paymentByTransaction(ctx, intent.ID)
	if errors.Is(err, ErrPaymentNotFound) {
		// Intent opened outside CreateIntent; fall back to the purchase in metadata.
		id, perr := uuid.Parse(intent.Metadata[domain.MetaPurchaseID])
		if perr != nil {
			log.Warn().Str("intent_id", intent.ID).Msg("succeeded intent has no known payment or purchase")
			return nil
		}
		_, err = s.completePurchase(ctx, id, intent.ID)
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.settle(ctx, payment, intent.ID)
	return err
}

// onIntentFailed records a declined attempt on the payment. The purchase stays
// pending: the buyer may retry the same intent, and the expiry sweep closes it
// otherwise.
func (s *Service) onIntentFailed(ctx context.Context, intent *Intent) error {
	if intent == nil {
		return errors.New("event has no payment intent")
	}
	reason := intent.FailureMessage
	if reason == "" {
		reason = "payment_failed"
	}
	payment, err := s.paymentByTransaction(ctx, intent.ID)
	if errors.Is(err, ErrPaymentNotFound) {
		log.Warn().Str("intent_id", intent.ID).Msg("failed intent has no payment record")
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.failPayment(ctx, payment, reason); err != nil {
		return err
	}
	log.Info().Str("intent_id", intent.ID).Str("purchase_id", payment.PurchaseID().String()).
		Str("reason", reason).Msg("payment attempt failed")
	return nil
}

// failPayment moves a pending payment to failed and keeps reason in metadata.
func (s *Service) failPayment(ctx context.Context, payment *domain.Payment, reason string) error {
	if payment.Status != domain.PaymentPending {
		return nil
	}
	meta := copyMeta(payment.Metadata)
	meta[domain.MetaFailureReason] = reason
	return s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", payment.ID, domain.PaymentPending).
		Updates(map[string]interface{}{
			"status":       domain.PaymentFailed,
			"metadata":     meta,
			"processed_at": s.now(),
		}).Error
}

// ExpirePending fails pending purchases created before now-olderThan and
// returns how many it expired. The open gateway intent of each is canceled
// first. A purchase whose intent turns out paid is completed instead, and one
// whose intent is still processing is left for a later sweep.
func (s *Service) ExpirePending(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.Purchases.StalePending(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		ok, err := s.expire(ctx, &stale[i])
		if err != nil {
			log.Error().Err(err).Str("purchase_id", stale[i].ID.String()).Msg("expire pending purchase")
			continue
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		log.Info().Int("count", expired).Dur("older_than", olderThan).Msg("expired pending purchases")
	}
	return expired, nil
}

func (s *Service) expire(ctx context.Context, p *domain.Purchase) (bool, error) {
	if p.PaymentReference != nil {
		intentID := *p.PaymentReference
		intent, err := s.Gateway.RetrieveIntent(ctx, intentID)
		if err != nil {
			return false, apperror.Wrap(ErrGatewayUnavailable, err)
		}
		payment, err := s.paymentByTransaction(ctx, intentID)
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return false, err
		}

		switch intent.Status {
		case IntentSucceeded:
			log.Warn().Str("purchase_id", p.ID.String()).Str("intent_id", intentID).
				Msg("stale purchase was paid; completing")
			if payment == nil {
				_, err = s.completePurchase(ctx, p.ID, intentID)
			} else {
				_, err = s.settle(ctx, payment, intentID)
			}
			return false, err
		case IntentProcessing:
			return false, nil
		case IntentCanceled:
		default:
			if err := s.Gateway.CancelIntent(ctx, intentID); err != nil {
				return false, apperror.Wrap(ErrGatewayUnavailable, err)
			}
		}
		if payment != nil {
			if err := s.failPayment(ctx, payment, purchases.ReasonExpired); err != nil {
				return false, err
			}
		}
	}
	if _, err := s.Purchases.Fail(ctx, p.ID, purchases.ReasonExpired); err != nil {
		if errors.Is(err, purchases.ErrInvalidState) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RefundPurchase refunds a completed purchase through the gateway, then
// reverses it locally. A gateway failure leaves the purchase completed and
// records the error on the payment.
func (s *Service) RefundPurchase(ctx context.Context, adminID, purchaseID uuid.UUID, reason string) (*domain.Purchase, error) {
	p, err := s.Purchases.Get(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PurchaseCompleted {
		return nil, ErrNotRefundable
	}

	var payment *domain.Payment
	if p.PaymentReference != nil {
		payment, err = s.paymentByTransaction(ctx, *p.PaymentReference)
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
	}

	var refundID string
	if payment != nil && p.Price > 0 {
		refundID, err = s.Gateway.Refund(ctx, payment.TransactionID, p.Price, reason)
		if err != nil {
			log.Error().Err(err).Str("admin_id", adminID.String()).Str("purchase_id", p.ID.String()).
				Int64("amount", int64(p.Price)).Msg("payment gateway refund failed")
			meta := copyMeta(payment.Metadata)
			meta[domain.MetaRefundError] = err.Error()
			if uerr := s.DB.WithContext(ctx).Model(payment).Update("metadata", meta).Error; uerr != nil {
				log.Error().Err(uerr).Str("payment_id", payment.ID.String()).Msg("record refund error on payment")
			}
			return nil, apperror.Wrap(ErrRefundFailed, err)
		}
		meta := copyMeta(payment.Metadata)
		meta[domain.MetaRefundReason] = reason
		meta[domain.MetaRefundID] = refundID
		delete(meta, domain.MetaRefundError)
		if err := s.DB.WithContext(ctx).Model(payment).Updates(map[string]interface{}{
			"status":   domain.PaymentRefunded,
			"metadata": meta,
		}).Error; err != nil {
			log.Error().Err(err).Str("purchase_id", p.ID.String()).Str("payment_id", payment.ID.String()).
				Str("refund_id", refundID).Int64("amount", int64(p.Price)).
				Msg("gateway refund issued but payment not marked refunded; reconcile")
			return nil, err
		}
	}

	refunded, err := s.Purchases.Refund(ctx, p.ID, reason)
	if err != nil {
		if refundID != "" {
			log.Error().Err(err).Str("purchase_id", p.ID.String()).Str("refund_id", refundID).
				Int64("amount", int64(p.Price)).Msg("gateway refund issued but purchase not reversed; reconcile")
		}
		return nil, err
	}
	log.Info().Str("admin_id", adminID.String()).Str("purchase_id", p.ID.String()).Msg("purchase refunded by admin")
	return refunded, nil
}

// History lists the buyer's payments, newest first.
func (s *Service) History(ctx context.Context, buyerID uuid.UUID, page pagination.Page) ([]domain.Payment, pagination.Meta, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Payment{}).Where("user_id = ?", buyerID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	var out []domain.Payment
	if err := q.Session(&gorm.Session{}).Scopes(page.Scope).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	return out, page.Meta(total), nil
}

// Get returns one of the buyer's payments.
func (s *Service) Get(ctx context.Context, buyerID, paymentID uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.UserID != buyerID {
		return nil, ErrForbidden
	}
	return &p, nil
}

func (s *Service) paymentByTransaction(ctx context.Context, transactionID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := s.DB.WithContext(ctx).First(&p, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func copyMeta(m datatypes.JSONMap) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range m {
		out[k] = v
	}
	return out
}
