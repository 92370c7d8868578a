package domain

import (
	"time"

	"promptmarket/internal/pkg/money"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Metadata keys stored on Payment and Payout rows.
const (
	MetaListingID     = "listing_id"
	MetaPurchaseID    = "purchase_id"
	MetaOrderNumber   = "order_number"
	MetaFailureReason = "failure_reason"
	MetaRefundReason  = "refund_reason"
	MetaRefundID      = "refund_id"
	MetaRefundError   = "refund_error"
	MetaError         = "error"
	MetaAttempts      = "attempts"
	MetaPurchaseCount = "purchase_count"
	// Earnings of sales refunded after their payout was transferred.
	MetaClawbackAmount    = "clawback_amount"
	MetaClawbackPurchases = "clawback_purchases"
)

// Payment mirrors a gateway charge attempt. TransactionID is the gateway's
// payment intent id and links the row to its Purchase through Metadata.
type Payment struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Amount        money.Cents       `gorm:"column:amount;not null" json:"amount"`
	Currency      string            `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Gateway       string            `gorm:"column:gateway;not null" json:"gateway"`
	TransactionID string            `gorm:"column:transaction_id;not null;uniqueIndex" json:"transaction_id"`
	Status        string            `gorm:"column:status;type:varchar(20);not null;default:pending" json:"status"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	ProcessedAt   *time.Time        `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func (Payment) TableName() string {
	return "Payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PurchaseID returns the purchase linked through metadata, or uuid.Nil.
func (p *Payment) PurchaseID() uuid.UUID {
	return metaUUID(p.Metadata, MetaPurchaseID)
}

// ListingID returns the listing linked through metadata, or uuid.Nil.
func (p *Payment) ListingID() uuid.UUID {
	return metaUUID(p.Metadata, MetaListingID)
}

func metaUUID(m datatypes.JSONMap, key string) uuid.UUID {
	if m == nil {
		return uuid.Nil
	}
	s, _ := m[key].(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
