package domain

import (
	"time"

	"promptmarket/internal/pkg/money"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PayoutPending   = "pending"
	PayoutProcessed = "processed"
	PayoutFailed    = "failed"
)

// Payout is a scheduled transfer of a seller's accrued earnings.
type Payout struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SellerID          uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Amount            money.Cents       `gorm:"column:amount;not null" json:"amount"`
	Currency          string            `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status            string            `gorm:"column:status;type:varchar(20);not null;default:pending;index" json:"status"`
	ScheduledFor      time.Time         `gorm:"column:scheduled_for;not null;index" json:"scheduled_for"`
	ProcessedAt       *time.Time        `gorm:"column:processed_at" json:"processed_at"`
	ExternalReference *string           `gorm:"column:external_reference" json:"external_reference"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (Payout) TableName() string {
	return "Payouts"
}

func (p *Payout) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
