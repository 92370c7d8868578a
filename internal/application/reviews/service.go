package reviews

import (
	"context"
	"errors"
	"math"
	"time"

	"promptmarket/internal/domain"
	"promptmarket/internal/pkg/constants"
	"promptmarket/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SellerInvalidator drops cached aggregates for a seller after a write.
type SellerInvalidator interface {
	InvalidateSeller(ctx context.Context, sellerID uuid.UUID)
}

// Service manages reviews. Every mutation recomputes the listing's rating in
// the same transaction.
type Service struct {
	DB    *gorm.DB
	Cache SellerInvalidator
	Now   func() time.Time
}

type Input struct {
	Rating int
	Title  *string
	Body   *string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validRating(r int) bool { return r >= 1 && r <= 5 }

// Create reviews a completed purchase owned by buyerID.
func (s *Service) Create(ctx context.Context, buyerID, purchaseID uuid.UUID, in Input) (*domain.Review, error) {
	if !validRating(in.Rating) {
		return nil, ErrInvalidRating
	}
	var review domain.Review
	var sellerID uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Purchase
		if err := tx.First(&p, "id = ?", purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if p.BuyerID != buyerID {
			return ErrNotPurchaser
		}
		if p.Status != domain.PurchaseCompleted {
			return ErrNotCompleted
		}
		var n int64
		if err := tx.Model(&domain.Review{}).Where("user_id = ? AND purchase_id = ?", buyerID, purchaseID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyReviewed
		}
		review = domain.Review{
			UserID:             buyerID,
			ListingID:          p.ListingID,
			PurchaseID:         p.ID,
			Rating:             in.Rating,
			Title:              in.Title,
			Body:               in.Body,
			IsApproved:         true,
			IsVerifiedPurchase: true,
		}
		if err := tx.Create(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReviewed
			}
			return err
		}
		sellerID = p.SellerID
		return recompute(tx, p.ListingID)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("review_id", review.ID.String()).Str("listing_id", review.ListingID.String()).
		Int("rating", review.Rating).Msg("review created")
	s.invalidate(ctx, sellerID)
	return &review, nil
}

// Update lets the author change rating, title and body.
func (s *Service) Update(ctx context.Context, userID, reviewID uuid.UUID, in Input) (*domain.Review, error) {
	if !validRating(in.Rating) {
		return nil, ErrInvalidRating
	}
	return s.mutate(ctx, reviewID, func(tx *gorm.DB, r *domain.Review) error {
		if r.UserID != userID {
			return ErrNotAuthor
		}
		return tx.Model(r).Updates(map[string]interface{}{
			"rating": in.Rating,
			"title":  in.Title,
			"body":   in.Body,
		}).Error
	})
}

// Respond stores the listing owner's public reply.
func (s *Service) Respond(ctx context.Context, sellerID, reviewID uuid.UUID, response string) (*domain.Review, error) {
	return s.mutate(ctx, reviewID, func(tx *gorm.DB, r *domain.Review) error {
		var l domain.Listing
		if err := tx.Select("id", "seller_id").First(&l, "id = ?", r.ListingID).Error; err != nil {
			return err
		}
		if l.SellerID != sellerID {
			return ErrNotListingOwner
		}
		return tx.Model(r).Updates(map[string]interface{}{
			"seller_response": response,
			"responded_at":    s.now(),
		}).Error
	})
}

// Moderate sets approval; only approved reviews count toward the rating.
func (s *Service) Moderate(ctx context.Context, reviewID uuid.UUID, approved bool) (*domain.Review, error) {
	return s.mutate(ctx, reviewID, func(tx *gorm.DB, r *domain.Review) error {
		return tx.Model(r).Update("is_approved", approved).Error
	})
}

// Delete removes a review. Authors delete their own; admins delete any.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, role string, reviewID uuid.UUID) error {
	_, err := s.mutate(ctx, reviewID, func(tx *gorm.DB, r *domain.Review) error {
		if r.UserID != userID && role != constants.Admin {
			return ErrNotAuthor
		}
		if err := tx.Where("review_id = ?", r.ID).Delete(&domain.ReviewVote{}).Error; err != nil {
			return err
		}
		return tx.Delete(r).Error
	})
	return err
}

// MarkHelpful counts one vote per user; repeated votes are no-ops.
func (s *Service) MarkHelpful(ctx context.Context, userID, reviewID uuid.UUID) (*domain.Review, error) {
	var out domain.Review
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := load(tx, reviewID, &out); err != nil {
			return err
		}
		if out.UserID == userID {
			return ErrOwnReview
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.ReviewVote{ReviewID: reviewID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&domain.Review{}).Where("id = ?", reviewID).
			UpdateColumn("helpful_count", gorm.Expr("helpful_count + 1")).Error; err != nil {
			return err
		}
		return load(tx, reviewID, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) mutate(ctx context.Context, reviewID uuid.UUID, fn func(tx *gorm.DB, r *domain.Review) error) (*domain.Review, error) {
	var out domain.Review
	var sellerID uuid.UUID
	deleted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := load(tx, reviewID, &out); err != nil {
			return err
		}
		if err := fn(tx, &out); err != nil {
			return err
		}
		if err := recompute(tx, out.ListingID); err != nil {
			return err
		}
		var l domain.Listing
		if err := tx.Select("id", "seller_id").First(&l, "id = ?", out.ListingID).Error; err != nil {
			return err
		}
		sellerID = l.SellerID
		err := tx.First(&out, "id = ?", reviewID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			deleted = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, sellerID)
	if deleted {
		return nil, nil
	}
	return &out, nil
}

func load(tx *gorm.DB, id uuid.UUID, out *domain.Review) error {
	if err := tx.First(out, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// recompute stores the mean of approved ratings (2 decimals) and their count.
func recompute(tx *gorm.DB, listingID uuid.UUID) error {
	var agg struct {
		Avg   *float64
		Count int
	}
	if err := tx.Model(&domain.Review{}).
		Select("AVG(rating) AS avg, COUNT(*) AS count").
		Where("listing_id = ? AND is_approved = ?", listingID, true).
		Scan(&agg).Error; err != nil {
		return err
	}
	avg := 0.0
	if agg.Avg != nil {
		avg = math.Round(*agg.Avg*100) / 100
	}
	return tx.Model(&domain.Listing{}).Where("id = ?", listingID).
		UpdateColumns(map[string]interface{}{"rating_avg": avg, "rating_count": agg.Count}).Error
}

func (s *Service) Get(ctx context.Context, reviewID uuid.UUID) (*domain.Review, error) {
	var r domain.Review
	if err := load(s.DB.WithContext(ctx), reviewID, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListForListing returns approved reviews, newest first.
func (s *Service) ListForListing(ctx context.Context, listingID uuid.UUID, page pagination.Page) ([]domain.Review, pagination.Meta, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Review{}).Where("listing_id = ? AND is_approved = ?", listingID, true)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	var out []domain.Review
	if err := q.Session(&gorm.Session{}).Scopes(page.Scope).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, pagination.Meta{}, err
	}
	return out, page.Meta(total), nil
}

func (s *Service) invalidate(ctx context.Context, sellerID uuid.UUID) {
	if s.Cache != nil && sellerID != uuid.Nil {
		s.Cache.InvalidateSeller(ctx, sellerID)
	}
}
