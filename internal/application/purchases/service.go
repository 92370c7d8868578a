package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promptmarket/internal/application/notifications"
	"promptmarket/internal/application/pricing"
	"promptmarket/internal/domain"
	"promptmarket/internal/metrics"
	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReasonExpired is stored on pending purchases failed by the expiry sweep.
const ReasonExpired = "expired"

// SellerInvalidator drops cached aggregates for a seller after a write.
type SellerInvalidator interface {
	InvalidateSeller(ctx context.Context, sellerID uuid.UUID)
}

// Service owns the purchase state machine:
// pending -> completed | failed, completed -> refunded.
type Service struct {
	DB             *gorm.DB
	CommissionRate float64
	Notifier       notifications.Dispatcher
	Cache          SellerInvalidator
	Now            func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Initiate creates a pending purchase of listingID for buyerID. custom is the
// buyer-supplied amount (nil when none was sent).
func (s *Service) Initiate(ctx context.Context, buyerID, listingID uuid.UUID, custom *money.Cents) (*domain.Purchase, error) {
	listing, err := s.checkPurchasable(ctx, buyerID, listingID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.FindActive(ctx, buyerID, listingID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicatePurchase
	}
	return s.create(ctx, buyerID, listing, custom)
}

// InitiateOrResume is the checkout entry point. A pending purchase at the same
// price is reused; one at a different price is failed and replaced. A
// completed purchase is a duplicate.
func (s *Service) InitiateOrResume(ctx context.Context, buyerID, listingID uuid.UUID, custom *money.Cents) (*domain.Purchase, bool, error) {
	listing, err := s.checkPurchasable(ctx, buyerID, listingID)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.FindActive(ctx, buyerID, listingID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Status != domain.PurchasePending {
			return nil, false, ErrDuplicatePurchase
		}
		price, err := pricing.Resolve(listing, custom)
		if err != nil {
			return nil, false, err
		}
		if price == existing.Price {
			return existing, true, nil
		}
		if _, err := s.Fail(ctx, existing.ID, "superseded"); err != nil && !errors.Is(err, ErrInvalidState) {
			return nil, false, err
		}
	}
	p, err := s.create(ctx, buyerID, listing, custom)
	return p, false, err
}

func (s *Service) checkPurchasable(ctx context.Context, buyerID, listingID uuid.UUID) (*domain.Listing, error) {
	var buyer domain.User
	if err := s.DB.WithContext(ctx).Select("id", "banned_at").First(&buyer, "id = ?", buyerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if buyer.IsBanned() {
		return nil, ErrBuyerBanned
	}
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if listing.SellerID == buyerID {
		return nil, ErrSelfPurchase
	}
	if !listing.IsPurchasable() {
		return nil, ErrUnavailable
	}
	return &listing, nil
}

func (s *Service) create(ctx context.Context, buyerID uuid.UUID, listing *domain.Listing, custom *money.Cents) (*domain.Purchase, error) {
	price, err := pricing.Resolve(listing, custom)
	if err != nil {
		return nil, err
	}
	fee, earnings, err := pricing.Split(price, s.CommissionRate)
	if err != nil {
		return nil, err
	}
	p := &domain.Purchase{
		ID:             uuid.New(),
		BuyerID:        buyerID,
		ListingID:      listing.ID,
		SellerID:       listing.SellerID,
		Price:          price,
		PlatformFee:    fee,
		SellerEarnings: earnings,
		Status:         domain.PurchasePending,
	}
	p.OrderNumber = OrderNumber(s.now(), p.ID)
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		// The partial unique index rejects a concurrent second active purchase.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicatePurchase
		}
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	metrics.Purchases.WithLabelValues("initiated").Inc()
	return p, nil
}

// OrderNumber renders PM-<yyyymmdd>-<first 8 hex of id>.
func OrderNumber(at time.Time, id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("PM-%s-%s", at.UTC().Format("20060102"), strings.ToUpper(hex[:8]))
}

// Complete moves a pending purchase to completed and credits the listing and
// seller counters in the same transaction. Notifications go out after commit.
func (s *Service) Complete(ctx context.Context, purchaseID uuid.UUID, method, externalRef string) (*domain.Purchase, error) {
	var out domain.Purchase
	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Purchase{}).
			Where("id = ? AND status = ?", purchaseID, domain.PurchasePending).
			Updates(map[string]interface{}{
				"status":            domain.PurchaseCompleted,
				"payment_method":    method,
				"payment_reference": externalRef,
				"purchased_at":      now,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return s.transitionError(tx, purchaseID)
		}
		if err := tx.First(&out, "id = ?", purchaseID).Error; err != nil {
			return err
		}
		return applyCounters(tx, &out, 1)
	})
	if err != nil {
		return nil, err
	}
	metrics.Purchases.WithLabelValues("completed").Inc()
	log.Info().Str("purchase_id", out.ID.String()).Str("order_number", out.OrderNumber).
		Str("seller_id", out.SellerID.String()).Int64("seller_earnings", int64(out.SellerEarnings)).
		Msg("purchase completed")
	s.afterWrite(ctx, &out, true)
	return &out, nil
}

// Fail moves a pending purchase to failed, keeping reason. No counters change.
func (s *Service) Fail(ctx context.Context, purchaseID uuid.UUID, reason string) (*domain.Purchase, error) {
	var out domain.Purchase
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Purchase{}).
			Where("id = ? AND status = ?", purchaseID, domain.PurchasePending).
			Updates(map[string]interface{}{
				"status":         domain.PurchaseFailed,
				"failure_reason": reason,
				"updated_at":     s.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return s.transitionError(tx, purchaseID)
		}
		return tx.First(&out, "id = ?", purchaseID).Error
	})
	if err != nil {
		return nil, err
	}
	label := "failed"
	if reason == ReasonExpired {
		label = "expired"
	}
	metrics.Purchases.WithLabelValues(label).Inc()
	return &out, nil
}

// Refund moves a completed purchase to refunded and reverses exactly what
// Complete credited.
func (s *Service) Refund(ctx context.Context, purchaseID uuid.UUID, reason string) (*domain.Purchase, error) {
	var out domain.Purchase
	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Purchase{}).
			Where("id = ? AND status = ?", purchaseID, domain.PurchaseCompleted).
			Updates(map[string]interface{}{
				"status":        domain.PurchaseRefunded,
				"refund_reason": reason,
				"refunded_at":   now,
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return s.transitionError(tx, purchaseID)
		}
		if err := tx.First(&out, "id = ?", purchaseID).Error; err != nil {
			return err
		}
		if err := applyCounters(tx, &out, -1); err != nil {
			return err
		}
		if out.PayoutID == nil {
			return nil
		}
		return adjustPayout(tx, &out)
	})
	if err != nil {
		return nil, err
	}
	metrics.Purchases.WithLabelValues("refunded").Inc()
	log.Info().Str("purchase_id", out.ID.String()).Str("reason", reason).Msg("purchase refunded")
	s.afterWrite(ctx, &out, false)
	return &out, nil
}

// applyCounters adds sign×(1 sale, seller earnings) with relative updates.
func applyCounters(tx *gorm.DB, p *domain.Purchase, sign int) error {
	if err := tx.Model(&domain.Listing{}).Where("id = ?", p.ListingID).
		UpdateColumn("purchase_count", gorm.Expr("purchase_count + ?", sign)).Error; err != nil {
		return err
	}
	return tx.Model(&domain.User{}).Where("id = ?", p.SellerID).
		UpdateColumns(map[string]interface{}{
			"total_sales":    gorm.Expr("total_sales + ?", sign),
			"total_earnings": gorm.Expr("total_earnings + ?", int64(p.SellerEarnings)*int64(sign)),
		}).Error
}

// adjustPayout takes a refunded sale back out of its payout. A payout not yet
// transferred drops the sale and its earnings. A transferred one records the
// earnings as a clawback owed by the seller.
func adjustPayout(tx *gorm.DB, p *domain.Purchase) error {
	var payout domain.Payout
	if err := tx.First(&payout, "id = ?", *p.PayoutID).Error; err != nil {
		return err
	}
	if payout.Status != domain.PayoutProcessed {
		if err := tx.Model(&domain.Purchase{}).Where("id = ?", p.ID).Update("payout_id", nil).Error; err != nil {
			return err
		}
		var linked int64
		if err := tx.Model(&domain.Purchase{}).Where("payout_id = ?", payout.ID).Count(&linked).Error; err != nil {
			return err
		}
		meta := copyMeta(payout.Metadata)
		meta[domain.MetaPurchaseCount] = linked
		res := tx.Model(&domain.Payout{}).
			Where("id = ? AND status IN ?", payout.ID, []string{domain.PayoutPending, domain.PayoutFailed}).
			Updates(map[string]interface{}{
				"amount":   gorm.Expr("amount - ?", int64(p.SellerEarnings)),
				"metadata": meta,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			log.Info().Str("payout_id", payout.ID.String()).Str("purchase_id", p.ID.String()).
				Int64("amount", int64(p.SellerEarnings)).Msg("refunded sale removed from payout")
			p.PayoutID = nil
			return nil
		}
		// Transferred in the meantime; undo the unlink and claw back instead.
		if err := tx.Model(&domain.Purchase{}).Where("id = ?", p.ID).Update("payout_id", payout.ID).Error; err != nil {
			return err
		}
		if err := tx.First(&payout, "id = ?", payout.ID).Error; err != nil {
			return err
		}
	}

	meta := copyMeta(payout.Metadata)
	meta[domain.MetaClawbackAmount] = metaInt(meta[domain.MetaClawbackAmount]) + int64(p.SellerEarnings)
	ids, _ := meta[domain.MetaClawbackPurchases].([]interface{})
	meta[domain.MetaClawbackPurchases] = append(ids, p.ID.String())
	if err := tx.Model(&domain.Payout{}).Where("id = ?", payout.ID).Update("metadata", meta).Error; err != nil {
		return err
	}
	log.Warn().Str("payout_id", payout.ID.String()).Str("purchase_id", p.ID.String()).
		Str("seller_id", p.SellerID.String()).Int64("amount", int64(p.SellerEarnings)).
		Msg("refunded sale was already paid out; clawback recorded")
	return nil
}

func copyMeta(m datatypes.JSONMap) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range m {
		out[k] = v
	}
	return out
}

// metaInt reads a number from decoded JSON metadata.
func metaInt(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func (s *Service) transitionError(tx *gorm.DB, purchaseID uuid.UUID) error {
	var n int64
	if err := tx.Model(&domain.Purchase{}).Where("id = ?", purchaseID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrInvalidState
}

func (s *Service) afterWrite(ctx context.Context, p *domain.Purchase, completed bool) {
	if s.Cache != nil {
		s.Cache.InvalidateSeller(ctx, p.SellerID)
	}
	ev, err := s.event(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("purchase_id", p.ID.String()).Msg("load notification context")
		return
	}
	n := notifications.Safe(s.Notifier)
	if completed {
		_ = n.PurchaseCompleted(ctx, ev)
	} else {
		_ = n.PurchaseRefunded(ctx, ev)
	}
}

func (s *Service) event(ctx context.Context, p *domain.Purchase) (notifications.PurchaseEvent, error) {
	ev := notifications.PurchaseEvent{Purchase: p}
	var users []domain.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", []uuid.UUID{p.BuyerID, p.SellerID}).Find(&users).Error; err != nil {
		return ev, err
	}
	for i := range users {
		if users[i].ID == p.BuyerID {
			ev.Buyer = &users[i]
		}
		if users[i].ID == p.SellerID {
			ev.Seller = &users[i]
		}
	}
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Select("id", "title", "slug", "seller_id").First(&listing, "id = ?", p.ListingID).Error; err != nil {
		return ev, err
	}
	ev.Listing = &listing
	return ev, nil
}

// Get returns a purchase by id.
func (s *Service) Get(ctx context.Context, purchaseID uuid.UUID) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", purchaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetForBuyer returns a purchase only if buyerID owns it.
func (s *Service) GetForBuyer(ctx context.Context, buyerID, purchaseID uuid.UUID) (*domain.Purchase, error) {
	p, err := s.Get(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.BuyerID != buyerID {
		return nil, ErrForbidden
	}
	return p, nil
}

// FindActive returns the buyer's pending or completed purchase of listingID, or nil.
func (s *Service) FindActive(ctx context.Context, buyerID, listingID uuid.UUID) (*domain.Purchase, error) {
	var p domain.Purchase
	err := s.DB.WithContext(ctx).
		Where("buyer_id = ? AND listing_id = ? AND status IN ?", buyerID, listingID,
			[]string{domain.PurchasePending, domain.PurchaseCompleted}).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasCompleted reports whether buyerID owns a completed purchase of listingID.
func (s *Service) HasCompleted(ctx context.Context, buyerID, listingID uuid.UUID) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&domain.Purchase{}).
		Where("buyer_id = ? AND listing_id = ? AND status = ?", buyerID, listingID, domain.PurchaseCompleted).
		Count(&n).Error
	return n > 0, err
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, page pagination.Page) ([]domain.Purchase, pagination.Meta, error) {
	return s.list(ctx, s.DB.WithContext(ctx).Where("buyer_id = ?", buyerID), page)
}

func (s *Service) ListBySeller(ctx context.Context, sellerID uuid.UUID, page pagination.Page) ([]domain.Purchase, pagination.Meta, error) {
	return s.list(ctx, s.DB.WithContext(ctx).Where("seller_id = ?", sellerID), page)
}

func (s *Service) list(ctx context.Context, q *gorm.DB, page pagination.Page) ([]domain.Purchase, pagination.Meta, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Model(&domain.Purchase{}).Count(&total).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	var out []domain.Purchase
	if err := q.Session(&gorm.Session{}).Scopes(page.Scope).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	return out, page.Meta(total), nil
}

// StalePending lists pending purchases created before now-olderThan, oldest first.
func (s *Service) StalePending(ctx context.Context, olderThan time.Duration) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := s.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.PurchasePending, s.now().Add(-olderThan)).
		Order("created_at ASC").Find(&out).Error
	return out, err
}
