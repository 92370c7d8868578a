// Package domaintest seeds users, listings and purchases for tests.
package domaintest

import (
	"testing"
	"time"

	"promptmarket/internal/domain"
	"promptmarket/internal/pkg/money"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Password is the plain-text password of every seeded user.
const Password = "Secret123!"

var passwordHash []byte

func hash(t *testing.T) string {
	if passwordHash == nil {
		h, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
		require.NoError(t, err)
		passwordHash = h
	}
	return string(passwordHash)
}

func User(t *testing.T, db *gorm.DB, role string) *domain.User {
	t.Helper()
	id := uuid.New()
	u := &domain.User{
		ID:           id,
		Name:         "User " + id.String()[:8],
		Email:        id.String()[:8] + "@example.com",
		PasswordHash: hash(t),
		Role:         role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// ListingOption adjusts a listing before it is inserted.
type ListingOption func(*domain.Listing)

func Fixed(price money.Cents) ListingOption {
	return func(l *domain.Listing) {
		l.PriceType = domain.PriceTypeFixed
		l.Price = price
		l.MinimumPrice = nil
	}
}

func PayWhatYouWant(minimum money.Cents) ListingOption {
	return func(l *domain.Listing) {
		l.PriceType = domain.PriceTypePayWhatYouWant
		l.Price = 0
		l.MinimumPrice = money.Ptr(minimum)
	}
}

func Free() ListingOption {
	return func(l *domain.Listing) {
		l.PriceType = domain.PriceTypeFree
		l.Price = 0
		l.MinimumPrice = nil
	}
}

func Status(status string) ListingOption {
	return func(l *domain.Listing) { l.Status = status }
}

// Listing inserts a published fixed-price (9.99) listing unless opts say otherwise.
func Listing(t *testing.T, db *gorm.DB, seller *domain.User, opts ...ListingOption) *domain.Listing {
	t.Helper()
	id := uuid.New()
	now := time.Now()
	l := &domain.Listing{
		ID:          id,
		SellerID:    seller.ID,
		Title:       "Prompt " + id.String()[:8],
		Slug:        "prompt-" + id.String()[:8],
		Description: "A useful prompt",
		Content:     "You are a helpful assistant.",
		AIModel:     "gpt-4o",
		PriceType:   domain.PriceTypeFixed,
		Price:       999,
		Status:      domain.ListingPublished,
		PublishedAt: &now,
	}
	for _, o := range opts {
		o(l)
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

// Purchase inserts a purchase row directly in the given status.
func Purchase(t *testing.T, db *gorm.DB, buyer *domain.User, listing *domain.Listing, status string, price, fee money.Cents) *domain.Purchase {
	t.Helper()
	id := uuid.New()
	p := &domain.Purchase{
		ID:             id,
		OrderNumber:    "PM-TEST-" + id.String()[:8],
		BuyerID:        buyer.ID,
		ListingID:      listing.ID,
		SellerID:       listing.SellerID,
		Price:          price,
		PlatformFee:    fee,
		SellerEarnings: price - fee,
		Status:         status,
	}
	if status == domain.PurchaseCompleted {
		now := time.Now()
		p.PurchasedAt = &now
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Reload refreshes u from the database.
func Reload[T any](t *testing.T, db *gorm.DB, id uuid.UUID) *T {
	t.Helper()
	var out T
	require.NoError(t, db.First(&out, "id = ?", id).Error)
	return &out
}
