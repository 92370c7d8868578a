package domain

import (
	"time"

	"promptmarket/internal/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
	PurchaseRefunded  = "refunded"
)

// Purchase is an immutable financial record of a buyer acquiring a listing.
// The partial unique index allows at most one pending-or-completed purchase per
// (buyer, listing); failed and refunded rows do not block a new attempt.
type Purchase struct {
	ID               uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber      string      `gorm:"column:order_number;not null;uniqueIndex" json:"order_number"`
	BuyerID          uuid.UUID   `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:idx_purchase_active,where:status <> 'failed' AND status <> 'refunded'" json:"buyer_id"`
	ListingID        uuid.UUID   `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:idx_purchase_active;index" json:"listing_id"`
	SellerID         uuid.UUID   `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Price            money.Cents `gorm:"column:price;not null" json:"price"`
	PlatformFee      money.Cents `gorm:"column:platform_fee;not null" json:"platform_fee"`
	SellerEarnings   money.Cents `gorm:"column:seller_earnings;not null" json:"seller_earnings"`
	Status           string      `gorm:"column:status;type:varchar(20);not null;default:pending;index" json:"status"`
	PaymentMethod    *string     `gorm:"column:payment_method" json:"payment_method"`
	PaymentReference *string     `gorm:"column:payment_reference;index" json:"payment_reference"`
	FailureReason    *string     `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	RefundReason     *string     `gorm:"column:refund_reason" json:"refund_reason,omitempty"`
	PayoutID         *uuid.UUID  `gorm:"column:payout_id;type:uuid;index" json:"payout_id,omitempty"`
	IntentAttempts   int         `gorm:"column:intent_attempts;not null;default:0" json:"-"`
	PurchasedAt      *time.Time  `gorm:"column:purchased_at" json:"purchased_at"`
	RefundedAt       *time.Time  `gorm:"column:refunded_at" json:"refunded_at,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

func (Purchase) TableName() string {
	return "Purchases"
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
