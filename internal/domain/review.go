package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is left by a buyer for a completed purchase; one per (buyer, purchase).
type Review struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_review_purchase" json:"user_id"`
	ListingID          uuid.UUID  `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	PurchaseID         uuid.UUID  `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex:idx_review_purchase" json:"purchase_id"`
	Rating             int        `gorm:"column:rating;not null" json:"rating"`
	Title              *string    `gorm:"column:title" json:"title"`
	Body               *string    `gorm:"column:body;type:text" json:"body"`
	IsApproved         bool       `gorm:"column:is_approved;not null" json:"is_approved"`
	IsVerifiedPurchase bool       `gorm:"column:is_verified_purchase;not null" json:"is_verified_purchase"`
	SellerResponse     *string    `gorm:"column:seller_response;type:text" json:"seller_response"`
	RespondedAt        *time.Time `gorm:"column:responded_at" json:"responded_at"`
	HelpfulCount       int        `gorm:"column:helpful_count;not null;default:0" json:"helpful_count"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (Review) TableName() string {
	return "Reviews"
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReviewVote records that a user found a review helpful.
type ReviewVote struct {
	ReviewID  uuid.UUID `gorm:"column:review_id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	CreatedAt time.Time
}

func (ReviewVote) TableName() string {
	return "ReviewVotes"
}
