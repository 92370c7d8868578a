package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"promptmarket/internal/domain"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/constants"
	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"
	"promptmarket/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a *Actor) isAdmin() bool { return a != nil && a.Role == constants.Admin }

// PurchaseChecker reports whether a buyer owns a completed purchase.
type PurchaseChecker interface {
	HasCompleted(ctx context.Context, buyerID, listingID uuid.UUID) (bool, error)
}

type Service struct {
	DB        *gorm.DB
	Purchases PurchaseChecker
	Now       func() time.Time
}

type Input struct {
	Title        string
	Description  string
	Content      string
	AIModel      string
	PriceType    string
	Price        *money.Cents
	MinimumPrice *money.Cents
	CategoryID   *uuid.UUID
	TagSlugs     []string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ValidatePricing checks the price fields against the pricing mode.
func ValidatePricing(in Input) error {
	fields := map[string][]string{}
	switch in.PriceType {
	case domain.PriceTypeFixed:
		if in.Price == nil || *in.Price <= 0 {
			fields["price"] = append(fields["price"], "A fixed price must be greater than 0")
		}
		if in.MinimumPrice != nil {
			fields["minimum_price"] = append(fields["minimum_price"], "Only pay-what-you-want prompts take a minimum price")
		}
	case domain.PriceTypePayWhatYouWant:
		if in.MinimumPrice == nil || *in.MinimumPrice < 0 {
			fields["minimum_price"] = append(fields["minimum_price"], "A minimum price of at least 0 is required")
		}
		if in.Price != nil && *in.Price != 0 {
			fields["price"] = append(fields["price"], "Pay-what-you-want prompts have no fixed price")
		}
	case domain.PriceTypeFree:
		if in.Price != nil && *in.Price != 0 {
			fields["price"] = append(fields["price"], "Free prompts have no price")
		}
		if in.MinimumPrice != nil {
			fields["minimum_price"] = append(fields["minimum_price"], "Free prompts have no minimum price")
		}
	default:
		fields["price_type"] = []string{"Invalid price type. Must be: fixed, pay_what_you_want, or free"}
	}
	if len(fields) > 0 {
		return apperror.Validation("The given data was invalid", fields)
	}
	return nil
}

func applyPricing(l *domain.Listing, in Input) {
	l.PriceType = in.PriceType
	l.Price = 0
	l.MinimumPrice = nil
	switch in.PriceType {
	case domain.PriceTypeFixed:
		l.Price = *in.Price
	case domain.PriceTypePayWhatYouWant:
		l.MinimumPrice = money.Ptr(*in.MinimumPrice)
	}
}

// Create stores a draft prompt for a seller or admin.
func (s *Service) Create(ctx context.Context, actor Actor, in Input) (*domain.Listing, error) {
	if actor.Role != constants.Seller && actor.Role != constants.Admin {
		return nil, ErrNotSeller
	}
	if err := ValidatePricing(in); err != nil {
		return nil, err
	}
	l := &domain.Listing{
		ID:          uuid.New(),
		SellerID:    actor.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Content:     in.Content,
		AIModel:     in.AIModel,
		CategoryID:  in.CategoryID,
		Status:      domain.ListingDraft,
	}
	applyPricing(l, in)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCategory(tx, in.CategoryID); err != nil {
			return err
		}
		tags, err := resolveTags(tx, in.TagSlugs)
		if err != nil {
			return err
		}
		slug, err := uniqueSlug(tx, l.Title, l.ID)
		if err != nil {
			return err
		}
		l.Slug = slug
		l.Tags = tags
		if err := tx.Create(l).Error; err != nil {
			return err
		}
		return recordEvent(tx, l.ID, actor.ID, domain.ListingEventCreated, nil)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("listing_id", l.ID.String()).Str("seller_id", actor.ID.String()).Msg("prompt created")
	return l, nil
}

// Update edits an owned, non-archived prompt. Changing the content of a
// published prompt sends it back to review.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, in Input) (*domain.Listing, error) {
	if err := ValidatePricing(in); err != nil {
		return nil, err
	}
	var out domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if out.SellerID != actor.ID {
			return ErrNotOwner
		}
		if out.Status == domain.ListingArchived {
			return ErrArchived
		}
		if err := checkCategory(tx, in.CategoryID); err != nil {
			return err
		}
		tags, err := resolveTags(tx, in.TagSlugs)
		if err != nil {
			return err
		}
		var data map[string]interface{}
		if out.Status == domain.ListingPublished && in.Content != out.Content {
			out.Status = domain.ListingPendingReview
			data = map[string]interface{}{"status": out.Status}
		}
		out.Title = strings.TrimSpace(in.Title)
		out.Description = in.Description
		out.Content = in.Content
		out.AIModel = in.AIModel
		out.CategoryID = in.CategoryID
		applyPricing(&out, in)
		if err := tx.Select("title", "description", "content", "ai_model", "category_id",
			"price_type", "price", "minimum_price", "status").Save(&out).Error; err != nil {
			return err
		}
		if err := recordEvent(tx, out.ID, actor.ID, domain.ListingEventUpdated, data); err != nil {
			return err
		}
		return tx.Model(&out).Association("Tags").Replace(tags)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit sends a draft or rejected prompt to moderation.
func (s *Service) Submit(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Listing, error) {
	return s.transition(ctx, actor, id, []string{domain.ListingDraft, domain.ListingRejected},
		func(l *domain.Listing) error {
			if l.SellerID != actor.ID {
				return ErrNotOwner
			}
			return nil
		},
		map[string]interface{}{"status": domain.ListingPendingReview, "rejection_reason": nil},
		domain.ListingEventSubmitted, nil)
}

func (s *Service) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Listing, error) {
	return s.transition(ctx, actor, id, []string{domain.ListingPendingReview}, nil,
		map[string]interface{}{"status": domain.ListingPublished, "published_at": s.now(), "rejection_reason": nil},
		domain.ListingEventApproved, nil)
}

func (s *Service) Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*domain.Listing, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonMissing
	}
	return s.transition(ctx, actor, id, []string{domain.ListingPendingReview}, nil,
		map[string]interface{}{"status": domain.ListingRejected, "rejection_reason": reason},
		domain.ListingEventRejected, map[string]interface{}{"reason": reason})
}

// Archive withdraws a prompt from sale. Existing buyers keep access.
func (s *Service) Archive(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Listing, error) {
	return s.transition(ctx, actor, id,
		[]string{domain.ListingDraft, domain.ListingPendingReview, domain.ListingPublished, domain.ListingRejected},
		func(l *domain.Listing) error {
			if l.SellerID != actor.ID && !actor.isAdmin() {
				return ErrNotOwner
			}
			return nil
		},
		map[string]interface{}{"status": domain.ListingArchived},
		domain.ListingEventArchived, nil)
}

func (s *Service) transition(ctx context.Context, actor Actor, id uuid.UUID, from []string, check func(*domain.Listing) error,
	set map[string]interface{}, event string, data map[string]interface{}) (*domain.Listing, error) {
	var out domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if check != nil {
			if err := check(&out); err != nil {
				return err
			}
		}
		res := tx.Model(&domain.Listing{}).Where("id = ? AND status IN ?", id, from).Updates(set)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidState
		}
		if err := recordEvent(tx, id, actor.ID, event, data); err != nil {
			return err
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("listing_id", id.String()).Str("status", out.Status).Str("actor_id", actor.ID.String()).Msg("prompt status changed")
	return &out, nil
}

// Get returns a prompt as viewer may see it. Unpublished prompts are only
// visible to their owner and admins; the content body only to the owner,
// admins and buyers with a completed purchase.
func (s *Service) Get(ctx context.Context, viewer *Actor, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	if err := s.DB.WithContext(ctx).Preload("Category").Preload("Tags").First(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	owner := viewer != nil && viewer.ID == l.SellerID
	if l.Status != domain.ListingPublished && !owner && !viewer.isAdmin() {
		return nil, ErrNotFound
	}
	if owner || viewer.isAdmin() {
		return &l, nil
	}
	if viewer != nil && s.Purchases != nil {
		ok, err := s.Purchases.HasCompleted(ctx, viewer.ID, l.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			return &l, nil
		}
	}
	l.Content = ""
	return &l, nil
}

// Search lists published prompts matching f, without content bodies.
func (s *Service) Search(ctx context.Context, f Filter) ([]domain.Listing, pagination.Meta, error) {
	base := s.DB.WithContext(ctx).Model(&domain.Listing{}).Where("status = ?", domain.ListingPublished)
	filtered := f.Apply(base)
	var total int64
	if err := filtered.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	page := f.Page.Normalize()
	var out []domain.Listing
	if err := filtered.Session(&gorm.Session{}).Omit("content").Preload("Category").Preload("Tags").
		Scopes(page.Scope).Find(&out).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	return out, page.Meta(total), nil
}

// ListBySeller returns every prompt of a seller, any status.
func (s *Service) ListBySeller(ctx context.Context, sellerID uuid.UUID, page pagination.Page) ([]domain.Listing, pagination.Meta, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Listing{}).Where("seller_id = ?", sellerID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	page = page.Normalize()
	var out []domain.Listing
	if err := q.Session(&gorm.Session{}).Preload("Tags").Scopes(page.Scope).
		Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	return out, page.Meta(total), nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func checkCategory(tx *gorm.DB, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&domain.Category{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownCateg
	}
	return nil
}

func resolveTags(tx *gorm.DB, slugs []string) ([]domain.Tag, error) {
	if len(slugs) == 0 {
		return []domain.Tag{}, nil
	}
	var tags []domain.Tag
	if err := tx.Where("slug IN ?", slugs).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(dedupe(slugs)) {
		return nil, ErrUnknownTag
	}
	return tags, nil
}

func dedupe(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

// uniqueSlug slugifies title, adding a short id suffix when taken.
func uniqueSlug(tx *gorm.DB, title string, id uuid.UUID) (string, error) {
	base := validation.Slugify(title)
	if base == "" {
		base = "prompt"
	}
	var n int64
	if err := tx.Model(&domain.Listing{}).Where("slug = ?", base).Count(&n).Error; err != nil {
		return "", err
	}
	if n == 0 {
		return base, nil
	}
	return base + "-" + strings.ReplaceAll(id.String(), "-", "")[:6], nil
}
