package domain

import (
	"time"

	"promptmarket/internal/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PriceTypeFixed          = "fixed"
	PriceTypePayWhatYouWant = "pay_what_you_want"
	PriceTypeFree           = "free"
)

const (
	ListingDraft         = "draft"
	ListingPendingReview = "pending_review"
	ListingPublished     = "published"
	ListingRejected      = "rejected"
	ListingArchived      = "archived"
)

// Listing is a sellable prompt.
type Listing struct {
	ID              uuid.UUID    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PublicID        uuid.UUID    `gorm:"column:public_id;type:uuid;not null;uniqueIndex" json:"public_id"`
	SellerID        uuid.UUID    `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Title           string       `gorm:"column:title;not null" json:"title"`
	Slug            string       `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Description     string       `gorm:"column:description;type:text" json:"description"`
	Content         string       `gorm:"column:content;type:text;not null" json:"content,omitempty"`
	AIModel         string       `gorm:"column:ai_model" json:"ai_model"`
	PriceType       string       `gorm:"column:price_type;type:varchar(20);not null" json:"price_type"`
	Price           money.Cents  `gorm:"column:price;not null;default:0" json:"price"`
	MinimumPrice    *money.Cents `gorm:"column:minimum_price" json:"minimum_price"`
	Status          string       `gorm:"column:status;type:varchar(20);not null;default:draft;index" json:"status"`
	RejectionReason *string      `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	CategoryID      *uuid.UUID   `gorm:"column:category_id;type:uuid;index" json:"category_id"`
	Category        *Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Tags            []Tag        `gorm:"many2many:prompt_tags;joinForeignKey:prompt_id;joinReferences:tag_id" json:"tags"`
	RatingAvg       float64      `gorm:"column:rating_avg;not null;default:0" json:"rating_avg"`
	RatingCount     int          `gorm:"column:rating_count;not null;default:0" json:"rating_count"`
	PurchaseCount   int          `gorm:"column:purchase_count;not null;default:0" json:"purchase_count"`
	PublishedAt     *time.Time   `gorm:"column:published_at" json:"published_at"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (Listing) TableName() string {
	return "Prompts"
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.PublicID == uuid.Nil {
		l.PublicID = uuid.New()
	}
	return nil
}

// IsPurchasable reports whether buyers may start a purchase.
func (l *Listing) IsPurchasable() bool {
	return l.Status == ListingPublished
}
