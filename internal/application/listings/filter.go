package listings

import (
	"strings"

	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sort keys accepted by Filter.
const (
	SortNewest  = "newest"
	SortPrice   = "price"
	SortRating  = "rating"
	SortPopular = "popular"
)

// Filter is a catalogue search. Zero fields are ignored.
type Filter struct {
	Query      string
	CategoryID *uuid.UUID
	TagSlugs   []string
	MinPrice   *money.Cents
	MaxPrice   *money.Cents
	PriceType  string
	SellerID   *uuid.UUID
	Sort       string
	Direction  string
	Page       pagination.Page
}

// Apply adds one predicate per present field and the ordering.
func (f Filter) Apply(db *gorm.DB) *gorm.DB {
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if f.CategoryID != nil {
		db = db.Where("category_id = ?", *f.CategoryID)
	}
	if len(f.TagSlugs) > 0 {
		sub := db.Session(&gorm.Session{NewDB: true}).Table("prompt_tags").
			Select("prompt_tags.prompt_id").
			Joins(`JOIN "Tags" ON "Tags".id = prompt_tags.tag_id`).
			Where(`"Tags".slug IN ?`, f.TagSlugs)
		db = db.Where("id IN (?)", sub)
	}
	if f.MinPrice != nil {
		db = db.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		db = db.Where("price <= ?", *f.MaxPrice)
	}
	if f.PriceType != "" {
		db = db.Where("price_type = ?", f.PriceType)
	}
	if f.SellerID != nil {
		db = db.Where("seller_id = ?", *f.SellerID)
	}
	return db.Order(f.order())
}

func (f Filter) order() string {
	dir := "DESC"
	if f.Sort == SortPrice {
		dir = "ASC"
	}
	switch strings.ToLower(f.Direction) {
	case "asc":
		dir = "ASC"
	case "desc":
		dir = "DESC"
	}
	col := "published_at"
	switch f.Sort {
	case SortPrice:
		col = "price"
	case SortRating:
		col = "rating_avg"
	case SortPopular:
		col = "purchase_count"
	}
	return col + " " + dir + ", id ASC"
}

