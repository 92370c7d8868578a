package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promptmarket/internal/application/notifications"
	"promptmarket/internal/domain"
	"promptmarket/internal/metrics"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultDelay = 7 * 24 * time.Hour

// Provider moves money to a seller's connected account and returns the
// transfer reference.
type Provider interface {
	Transfer(ctx context.Context, destination string, amount money.Cents, currency, idempotencyKey string) (string, error)
}

// SellerInvalidator drops cached aggregates for a seller after a write.
type SellerInvalidator interface {
	InvalidateSeller(ctx context.Context, sellerID uuid.UUID)
}

type Service struct {
	DB       *gorm.DB
	Provider Provider
	Notifier notifications.Dispatcher
	Cache    SellerInvalidator
	Currency string
	// Delay is added to now when a payout has no explicit schedule.
	Delay time.Duration
	// RetryAttempts bounds transfer attempts on temporary errors.
	RetryAttempts uint
	RetryDelay    time.Duration
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func eligible(db *gorm.DB, sellerID uuid.UUID) *gorm.DB {
	return db.Model(&domain.Purchase{}).
		Where("seller_id = ? AND status = ? AND payout_id IS NULL", sellerID, domain.PurchaseCompleted)
}

// PendingEarnings sums seller earnings of completed purchases not yet linked
// to a payout.
func (s *Service) PendingEarnings(ctx context.Context, sellerID uuid.UUID) (money.Cents, error) {
	return pendingEarnings(s.DB.WithContext(ctx), sellerID)
}

func pendingEarnings(db *gorm.DB, sellerID uuid.UUID) (money.Cents, error) {
	var total int64
	err := eligible(db, sellerID).Select("COALESCE(SUM(seller_earnings), 0)").Scan(&total).Error
	return money.Cents(total), err
}

// CreatePayout schedules a payout of up to amount. Whole purchases are
// linked oldest first while they fit, and the payout carries their sum.
func (s *Service) CreatePayout(ctx context.Context, sellerID uuid.UUID, amount money.Cents, scheduledFor *time.Time) (*domain.Payout, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	when := s.now().Add(s.delay())
	if scheduledFor != nil {
		when = *scheduledFor
	}

	var payout domain.Payout
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := pendingEarnings(tx, sellerID)
		if err != nil {
			return err
		}
		if amount > pending {
			return ErrInsufficientBalance
		}
		var candidates []domain.Purchase
		if err := eligible(tx, sellerID).Select("id", "seller_earnings").
			Order("purchased_at ASC, id ASC").Find(&candidates).Error; err != nil {
			return err
		}
		var ids []uuid.UUID
		var linked money.Cents
		for _, p := range candidates {
			if linked+p.SellerEarnings > amount {
				break
			}
			linked += p.SellerEarnings
			ids = append(ids, p.ID)
		}
		if linked <= 0 {
			return ErrAmountBelowSale
		}

		payout = domain.Payout{
			SellerID:     sellerID,
			Amount:       linked,
			Currency:     s.Currency,
			Status:       domain.PayoutPending,
			ScheduledFor: when,
			Metadata:     datatypes.JSONMap{domain.MetaPurchaseCount: len(ids)},
		}
		if err := tx.Create(&payout).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.Purchase{}).Where("id IN ? AND payout_id IS NULL", ids).
			Update("payout_id", payout.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("linked %d of %d purchases to payout", res.RowsAffected, len(ids))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("payout_id", payout.ID.String()).Str("seller_id", sellerID.String()).
		Int64("amount", int64(payout.Amount)).Time("scheduled_for", when).Msg("payout scheduled")
	s.invalidate(ctx, sellerID)
	return &payout, nil
}

func (s *Service) delay() time.Duration {
	if s.Delay > 0 {
		return s.Delay
	}
	return DefaultDelay
}

// SchedulePayouts creates a full-balance payout for every seller whose
// pending earnings reach minimum. It returns the number created.
func (s *Service) SchedulePayouts(ctx context.Context, minimum money.Cents) (int, error) {
	type balance struct {
		SellerID uuid.UUID
		Total    int64
	}
	var rows []balance
	err := s.DB.WithContext(ctx).Model(&domain.Purchase{}).
		Select("seller_id, SUM(seller_earnings) AS total").
		Where("status = ? AND payout_id IS NULL", domain.PurchaseCompleted).
		Group("seller_id").
		Having("SUM(seller_earnings) >= ? AND SUM(seller_earnings) > 0", int64(minimum)).
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}
	created := 0
	for _, r := range rows {
		if _, err := s.CreatePayout(ctx, r.SellerID, money.Cents(r.Total), nil); err != nil {
			log.Error().Err(err).Str("seller_id", r.SellerID.String()).Msg("schedule payout")
			continue
		}
		created++
	}
	return created, nil
}

// ProcessScheduled processes every due pending payout. One payout failing
// does not stop the others. It returns the number processed successfully.
func (s *Service) ProcessScheduled(ctx context.Context) (int, error) {
	var due []domain.Payout
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", domain.PayoutPending, s.now()).
		Order("scheduled_for ASC").Find(&due).Error; err != nil {
		return 0, err
	}
	ok := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return ok, err
		}
		if _, err := s.Process(ctx, &due[i]); err != nil {
			continue
		}
		ok++
	}
	return ok, nil
}

// Process transfers a pending payout. Temporary provider errors are retried;
// any other error, or running out of attempts, fails the payout.
func (s *Service) Process(ctx context.Context, payout *domain.Payout) (*domain.Payout, error) {
	if payout.Status != domain.PayoutPending {
		return nil, ErrInvalidState
	}
	var seller domain.User
	if err := s.DB.WithContext(ctx).First(&seller, "id = ?", payout.SellerID).Error; err != nil {
		return nil, err
	}
	if seller.StripeAccountID == nil || *seller.StripeAccountID == "" {
		return s.markFailed(ctx, payout, ErrNoPayoutAccount, 0)
	}
	// Every linked sale was refunded before the transfer.
	if payout.Amount <= 0 {
		return s.markFailed(ctx, payout, ErrInvalidAmount, 0)
	}

	var (
		ref      string
		attempts uint
	)
	err := retry.Do(
		func() error {
			attempts++
			var err error
			ref, err = s.Provider.Transfer(ctx, *seller.StripeAccountID, payout.Amount, payout.Currency, "payout-"+payout.ID.String())
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts()),
		retry.Delay(s.RetryDelay),
		retry.MaxDelay(30*time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(apperror.IsTemporary),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Str("payout_id", payout.ID.String()).Uint("attempt", n+1).Msg("payout transfer retry")
		}),
	)
	if err != nil {
		return s.markFailed(ctx, payout, err, attempts)
	}

	now := s.now()
	res := s.DB.WithContext(ctx).Model(&domain.Payout{}).
		Where("id = ? AND status = ?", payout.ID, domain.PayoutPending).
		Updates(map[string]interface{}{
			"status":             domain.PayoutProcessed,
			"external_reference": ref,
			"processed_at":       now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, ErrInvalidState
	}
	payout.Status = domain.PayoutProcessed
	payout.ExternalReference = &ref
	payout.ProcessedAt = &now

	metrics.Payouts.WithLabelValues("processed").Inc()
	log.Info().Str("payout_id", payout.ID.String()).Str("seller_id", payout.SellerID.String()).
		Int64("amount", int64(payout.Amount)).Str("reference", ref).Msg("payout processed")
	s.invalidate(ctx, payout.SellerID)
	_ = notifications.Safe(s.Notifier).PayoutProcessed(ctx, notifications.PayoutEvent{Payout: payout, Seller: &seller})
	return payout, nil
}

func (s *Service) attempts() uint {
	if s.RetryAttempts == 0 {
		return 1
	}
	return s.RetryAttempts
}

func (s *Service) markFailed(ctx context.Context, payout *domain.Payout, cause error, attempts uint) (*domain.Payout, error) {
	meta := datatypes.JSONMap{}
	for k, v := range payout.Metadata {
		meta[k] = v
	}
	meta[domain.MetaError] = cause.Error()
	meta[domain.MetaAttempts] = attempts
	if err := s.DB.WithContext(ctx).Model(&domain.Payout{}).
		Where("id = ? AND status = ?", payout.ID, domain.PayoutPending).
		Updates(map[string]interface{}{"status": domain.PayoutFailed, "metadata": meta}).Error; err != nil {
		return nil, err
	}
	payout.Status = domain.PayoutFailed
	payout.Metadata = meta
	metrics.Payouts.WithLabelValues("failed").Inc()
	log.Error().Err(cause).Str("payout_id", payout.ID.String()).Str("seller_id", payout.SellerID.String()).
		Int64("amount", int64(payout.Amount)).Uint("attempts", attempts).Msg("payout failed")
	return payout, cause
}

// Retry moves a failed payout back to pending, due now.
func (s *Service) Retry(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	p, err := s.Get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	meta := datatypes.JSONMap{}
	for k, v := range p.Metadata {
		meta[k] = v
	}
	if prev, ok := meta[domain.MetaError]; ok {
		meta["previous_error"] = prev
		delete(meta, domain.MetaError)
	}
	res := s.DB.WithContext(ctx).Model(&domain.Payout{}).
		Where("id = ? AND status = ?", payoutID, domain.PayoutFailed).
		Updates(map[string]interface{}{
			"status":        domain.PayoutPending,
			"scheduled_for": s.now(),
			"metadata":      meta,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, ErrInvalidState
	}
	metrics.Payouts.WithLabelValues("retried").Inc()
	return s.Get(ctx, payoutID)
}

func (s *Service) Get(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	var p domain.Payout
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", payoutID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) ListBySeller(ctx context.Context, sellerID uuid.UUID, page pagination.Page) ([]domain.Payout, pagination.Meta, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Payout{}).Where("seller_id = ?", sellerID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	var out []domain.Payout
	if err := q.Session(&gorm.Session{}).Scopes(page.Scope).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	return out, page.Meta(total), nil
}

func (s *Service) invalidate(ctx context.Context, sellerID uuid.UUID) {
	if s.Cache != nil {
		s.Cache.InvalidateSeller(ctx, sellerID)
	}
}
