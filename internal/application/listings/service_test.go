package listings

import (
	"context"
	"testing"

	"promptmarket/internal/domain"
	"promptmarket/internal/domain/domaintest"
	"promptmarket/internal/infrastructure/database/databasetest"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/constants"
	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type owned map[uuid.UUID]bool

func (o owned) HasCompleted(_ context.Context, buyerID, _ uuid.UUID) (bool, error) {
	return o[buyerID], nil
}

func fixedInput(title string, price money.Cents) Input {
	return Input{
		Title:     title,
		Content:   "Act as a senior Go reviewer.",
		AIModel:   "gpt-4o",
		PriceType: domain.PriceTypeFixed,
		Price:     money.Ptr(price),
	}
}

func setup(t *testing.T) (*gorm.DB, *Service, Actor) {
	db := databasetest.Open(t)
	seller := domaintest.User(t, db, constants.Seller)
	return db, &Service{DB: db, Purchases: owned{}}, Actor{ID: seller.ID, Role: constants.Seller}
}

func TestValidatePricing(t *testing.T) {
	cases := []struct {
		name  string
		in    Input
		field string
	}{
		{"fixed without price", Input{PriceType: domain.PriceTypeFixed}, "price"},
		{"fixed zero", Input{PriceType: domain.PriceTypeFixed, Price: money.Ptr(0)}, "price"},
		{"fixed with minimum", Input{PriceType: domain.PriceTypeFixed, Price: money.Ptr(500), MinimumPrice: money.Ptr(100)}, "minimum_price"},
		{"pwyw without minimum", Input{PriceType: domain.PriceTypePayWhatYouWant}, "minimum_price"},
		{"pwyw negative minimum", Input{PriceType: domain.PriceTypePayWhatYouWant, MinimumPrice: money.Ptr(-1)}, "minimum_price"},
		{"pwyw with price", Input{PriceType: domain.PriceTypePayWhatYouWant, MinimumPrice: money.Ptr(0), Price: money.Ptr(300)}, "price"},
		{"free with price", Input{PriceType: domain.PriceTypeFree, Price: money.Ptr(100)}, "price"},
		{"unknown type", Input{PriceType: "auction"}, "price_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePricing(tc.in)
			e, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.KindValidation, e.Kind)
			assert.Contains(t, e.Fields, tc.field)
		})
	}

	assert.NoError(t, ValidatePricing(Input{PriceType: domain.PriceTypePayWhatYouWant, MinimumPrice: money.Ptr(0)}))
	assert.NoError(t, ValidatePricing(Input{PriceType: domain.PriceTypeFree}))
}

func TestCreate(t *testing.T) {
	db, svc, seller := setup(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&domain.Tag{Name: "Coding", Slug: "coding"}).Error)

	in := fixedInput("Code Reviewer Pro!", 999)
	in.TagSlugs = []string{"coding"}
	l, err := svc.Create(ctx, seller, in)
	require.NoError(t, err)
	assert.Equal(t, "code-reviewer-pro", l.Slug)
	assert.Equal(t, domain.ListingDraft, l.Status)
	assert.Equal(t, money.Cents(999), l.Price)
	assert.NotEqual(t, uuid.Nil, l.PublicID)
	assert.NotEqual(t, l.ID, l.PublicID)

	again, err := svc.Create(ctx, seller, fixedInput("Code reviewer pro", 999))
	require.NoError(t, err)
	assert.NotEqual(t, l.Slug, again.Slug)
	assert.NotEqual(t, l.PublicID, again.PublicID)
	assert.Contains(t, again.Slug, "code-reviewer-pro-")

	buyer := domaintest.User(t, db, constants.Buyer)
	_, err = svc.Create(ctx, Actor{ID: buyer.ID, Role: constants.Buyer}, fixedInput("x", 100))
	assert.ErrorIs(t, err, ErrNotSeller)

	bad := fixedInput("Tagged", 100)
	bad.TagSlugs = []string{"nope"}
	_, err = svc.Create(ctx, seller, bad)
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestModerationLifecycle(t *testing.T) {
	db, svc, seller := setup(t)
	ctx := context.Background()
	admin := Actor{ID: domaintest.User(t, db, constants.Admin).ID, Role: constants.Admin}
	l, err := svc.Create(ctx, seller, fixedInput("Lifecycle", 500))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, admin, l.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	l, err = svc.Submit(ctx, seller, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingPendingReview, l.Status)

	_, err = svc.Reject(ctx, admin, l.ID, "")
	assert.ErrorIs(t, err, ErrReasonMissing)
	l, err = svc.Reject(ctx, admin, l.ID, "needs examples")
	require.NoError(t, err)
	assert.Equal(t, domain.ListingRejected, l.Status)
	require.NotNil(t, l.RejectionReason)

	_, err = svc.Submit(ctx, seller, l.ID)
	require.NoError(t, err)
	l, err = svc.Approve(ctx, admin, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingPublished, l.Status)
	assert.NotNil(t, l.PublishedAt)
	assert.Nil(t, l.RejectionReason)

	in := fixedInput("Lifecycle", 700)
	in.Content = l.Content
	l, err = svc.Update(ctx, seller, l.ID, in)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingPublished, l.Status)

	in.Content = "A different prompt body"
	l, err = svc.Update(ctx, seller, l.ID, in)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingPendingReview, l.Status)

	l, err = svc.Archive(ctx, seller, l.ID)
	require.NoError(t, err)
	_, err = svc.Update(ctx, seller, l.ID, in)
	assert.ErrorIs(t, err, ErrArchived)
	_, err = svc.Archive(ctx, seller, l.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestHistory(t *testing.T) {
	db, svc, seller := setup(t)
	ctx := context.Background()
	admin := Actor{ID: domaintest.User(t, db, constants.Admin).ID, Role: constants.Admin}
	l, err := svc.Create(ctx, seller, fixedInput("Audited", 500))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, seller, l.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, admin, l.ID, "too short")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, admin, l.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	events, err := svc.History(ctx, seller, l.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.ListingEventCreated, events[0].EventType)
	assert.Equal(t, domain.ListingEventSubmitted, events[1].EventType)
	assert.Equal(t, domain.ListingEventRejected, events[2].EventType)
	assert.Equal(t, admin.ID, events[2].ActorID)
	assert.JSONEq(t, `{"reason":"too short"}`, string(events[2].EventData))

	_, err = svc.History(ctx, admin, l.ID)
	assert.NoError(t, err)
	other := domaintest.User(t, db, constants.Seller)
	_, err = svc.History(ctx, Actor{ID: other.ID, Role: constants.Seller}, l.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestOwnershipGuards(t *testing.T) {
	db, svc, seller := setup(t)
	ctx := context.Background()
	l, err := svc.Create(ctx, seller, fixedInput("Guarded", 500))
	require.NoError(t, err)

	other := domaintest.User(t, db, constants.Seller)
	intruder := Actor{ID: other.ID, Role: constants.Seller}
	_, err = svc.Update(ctx, intruder, l.ID, fixedInput("Mine now", 1))
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = svc.Submit(ctx, intruder, l.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = svc.Archive(ctx, intruder, l.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	admin := domaintest.User(t, db, constants.Admin)
	_, err = svc.Archive(ctx, Actor{ID: admin.ID, Role: constants.Admin}, l.ID)
	assert.NoError(t, err)
}

func TestGet_Visibility(t *testing.T) {
	db, svc, seller := setup(t)
	ctx := context.Background()
	owner, err := svc.Create(ctx, seller, fixedInput("Hidden", 500))
	require.NoError(t, err)

	buyer := domaintest.User(t, db, constants.Buyer)
	viewer := &Actor{ID: buyer.ID, Role: constants.Buyer}

	_, err = svc.Get(ctx, viewer, owner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, nil, owner.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(ctx, &seller, owner.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Content)

	published := domaintest.Listing(t, db, &domain.User{ID: seller.ID})
	got, err = svc.Get(ctx, viewer, published.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Content)

	svc.Purchases = owned{buyer.ID: true}
	got, err = svc.Get(ctx, viewer, published.ID)
	require.NoError(t, err)
	assert.Equal(t, published.Content, got.Content)
}

func TestSearch(t *testing.T) {
	db, svc, seller := setup(t)
	ctx := context.Background()
	owner := &domain.User{ID: seller.ID}

	cat := domain.Category{Name: "Writing", Slug: "writing"}
	require.NoError(t, db.Create(&cat).Error)
	tag := domain.Tag{Name: "SEO", Slug: "seo"}
	require.NoError(t, db.Create(&tag).Error)

	cheap := domaintest.Listing(t, db, owner, domaintest.Fixed(199))
	pricey := domaintest.Listing(t, db, owner, domaintest.Fixed(4999))
	free := domaintest.Listing(t, db, owner, domaintest.Free())
	domaintest.Listing(t, db, owner, domaintest.Status(domain.ListingDraft))

	require.NoError(t, db.Model(pricey).Updates(map[string]interface{}{
		"category_id": cat.ID, "title": "Blog post outliner", "purchase_count": 9, "rating_avg": 4.5,
	}).Error)
	require.NoError(t, db.Model(cheap).Association("Tags").Append(&tag))

	run := func(f Filter) []domain.Listing {
		f.Page = pagination.Page{Page: 1, PerPage: 50}
		out, _, err := svc.Search(ctx, f)
		require.NoError(t, err)
		return out
	}
	ids := func(ls []domain.Listing) []uuid.UUID {
		out := make([]uuid.UUID, len(ls))
		for i, l := range ls {
			out[i] = l.ID
			assert.Empty(t, l.Content)
		}
		return out
	}

	assert.Len(t, run(Filter{}), 3)
	assert.Equal(t, []uuid.UUID{pricey.ID}, ids(run(Filter{Query: "OUTLINER"})))
	assert.Equal(t, []uuid.UUID{pricey.ID}, ids(run(Filter{CategoryID: &cat.ID})))
	assert.Equal(t, []uuid.UUID{cheap.ID}, ids(run(Filter{TagSlugs: []string{"seo"}})))
	assert.Equal(t, []uuid.UUID{free.ID}, ids(run(Filter{PriceType: domain.PriceTypeFree})))
	assert.ElementsMatch(t, []uuid.UUID{cheap.ID, free.ID}, ids(run(Filter{MaxPrice: money.Ptr(1000)})))
	assert.Equal(t, []uuid.UUID{pricey.ID}, ids(run(Filter{MinPrice: money.Ptr(1000)})))
	assert.Equal(t, []uuid.UUID{free.ID, cheap.ID, pricey.ID}, ids(run(Filter{Sort: SortPrice})))
	assert.Equal(t, []uuid.UUID{pricey.ID, cheap.ID, free.ID}, ids(run(Filter{Sort: SortPrice, Direction: "desc"})))
	assert.Equal(t, pricey.ID, run(Filter{Sort: SortPopular})[0].ID)
	assert.Equal(t, pricey.ID, run(Filter{Sort: SortRating})[0].ID)

	_, meta, err := svc.Search(ctx, Filter{Page: pagination.Page{Page: 1, PerPage: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.Total)
	assert.Equal(t, int64(2), meta.TotalPages)
}
