package reviews

import (
	"context"
	"testing"

	"promptmarket/internal/domain"
	"promptmarket/internal/domain/domaintest"
	"promptmarket/internal/infrastructure/database/databasetest"
	"promptmarket/internal/pkg/constants"
	"promptmarket/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type counter struct{ n int }

func (c *counter) InvalidateSeller(context.Context, uuid.UUID) { c.n++ }

type fixture struct {
	db      *gorm.DB
	svc     *Service
	cache   *counter
	seller  *domain.User
	listing *domain.Listing
}

func setup(t *testing.T) *fixture {
	db := databasetest.Open(t)
	seller := domaintest.User(t, db, constants.Seller)
	c := &counter{}
	return &fixture{
		db:      db,
		svc:     &Service{DB: db, Cache: c},
		cache:   c,
		seller:  seller,
		listing: domaintest.Listing(t, db, seller),
	}
}

// purchase returns a completed purchase of the fixture listing by a new buyer.
func (f *fixture) purchase(t *testing.T) (*domain.User, *domain.Purchase) {
	buyer := domaintest.User(t, f.db, constants.Buyer)
	return buyer, domaintest.Purchase(t, f.db, buyer, f.listing, domain.PurchaseCompleted, 999, 150)
}

func (f *fixture) listingRating(t *testing.T) (float64, int) {
	l := domaintest.Reload[domain.Listing](t, f.db, f.listing.ID)
	return l.RatingAvg, l.RatingCount
}

func TestCreate_AlreadyReviewed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	buyer, p := f.purchase(t)

	r, err := f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: 5})
	require.NoError(t, err)
	assert.True(t, r.IsApproved)
	assert.True(t, r.IsVerifiedPurchase)

	_, err = f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: 4})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	avg, count := f.listingRating(t)
	assert.Equal(t, 5.0, avg)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.cache.n)
}

func TestCreate_Guards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	buyer, p := f.purchase(t)
	other := domaintest.User(t, f.db, constants.Buyer)

	_, err := f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: 0})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = f.svc.Create(ctx, other.ID, p.ID, Input{Rating: 4})
	assert.ErrorIs(t, err, ErrNotPurchaser)

	_, err = f.svc.Create(ctx, buyer.ID, uuid.New(), Input{Rating: 4})
	assert.ErrorIs(t, err, ErrPurchaseNotFound)

	listing := domaintest.Listing(t, f.db, f.seller)
	pending := domaintest.Purchase(t, f.db, buyer, listing, domain.PurchasePending, 999, 150)
	_, err = f.svc.Create(ctx, buyer.ID, pending.ID, Input{Rating: 4})
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestRatingRecomputation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var reviews []*domain.Review
	for _, rating := range []int{5, 4, 4} {
		buyer, p := f.purchase(t)
		r, err := f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: rating})
		require.NoError(t, err)
		reviews = append(reviews, r)
	}
	avg, count := f.listingRating(t)
	assert.Equal(t, 4.33, avg)
	assert.Equal(t, 3, count)

	_, err := f.svc.Update(ctx, reviews[1].UserID, reviews[1].ID, Input{Rating: 1})
	require.NoError(t, err)
	avg, _ = f.listingRating(t)
	assert.Equal(t, 3.33, avg)

	_, err = f.svc.Moderate(ctx, reviews[0].ID, false)
	require.NoError(t, err)
	avg, count = f.listingRating(t)
	assert.Equal(t, 2.5, avg)
	assert.Equal(t, 2, count)

	require.NoError(t, f.svc.Delete(ctx, reviews[2].UserID, constants.Buyer, reviews[2].ID))
	avg, count = f.listingRating(t)
	assert.Equal(t, 1.0, avg)
	assert.Equal(t, 1, count)

	admin := domaintest.User(t, f.db, constants.Admin)
	require.NoError(t, f.svc.Delete(ctx, admin.ID, constants.Admin, reviews[1].ID))
	avg, count = f.listingRating(t)
	assert.Zero(t, avg)
	assert.Zero(t, count)
}

func TestUpdateAndDelete_AuthorOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	buyer, p := f.purchase(t)
	r, err := f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: 3})
	require.NoError(t, err)

	stranger := domaintest.User(t, f.db, constants.Buyer)
	_, err = f.svc.Update(ctx, stranger.ID, r.ID, Input{Rating: 1})
	assert.ErrorIs(t, err, ErrNotAuthor)
	assert.ErrorIs(t, f.svc.Delete(ctx, stranger.ID, constants.Buyer, r.ID), ErrNotAuthor)
	assert.ErrorIs(t, f.svc.Delete(ctx, stranger.ID, constants.Buyer, uuid.New()), ErrNotFound)
}

func TestRespond(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	buyer, p := f.purchase(t)
	r, err := f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: 4})
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, buyer.ID, r.ID, "thanks")
	assert.ErrorIs(t, err, ErrNotListingOwner)

	got, err := f.svc.Respond(ctx, f.seller.ID, r.ID, "Thanks for the feedback!")
	require.NoError(t, err)
	require.NotNil(t, got.SellerResponse)
	assert.Equal(t, "Thanks for the feedback!", *got.SellerResponse)
	assert.NotNil(t, got.RespondedAt)
}

func TestMarkHelpful_OncePerUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	buyer, p := f.purchase(t)
	r, err := f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: 4})
	require.NoError(t, err)

	_, err = f.svc.MarkHelpful(ctx, buyer.ID, r.ID)
	assert.ErrorIs(t, err, ErrOwnReview)

	reader := domaintest.User(t, f.db, constants.Buyer)
	got, err := f.svc.MarkHelpful(ctx, reader.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.HelpfulCount)

	got, err = f.svc.MarkHelpful(ctx, reader.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.HelpfulCount)
}

func TestListForListing_ApprovedOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		buyer, p := f.purchase(t)
		r, err := f.svc.Create(ctx, buyer.ID, p.ID, Input{Rating: 5})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	_, err := f.svc.Moderate(ctx, ids[0], false)
	require.NoError(t, err)

	list, meta, err := f.svc.ListForListing(ctx, f.listing.ID, pagination.Page{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(2), meta.Total)
}
