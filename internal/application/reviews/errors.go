package reviews

import "promptmarket/internal/pkg/apperror"

var (
	ErrNotFound         = apperror.New(apperror.KindNotFound, "Review not found")
	ErrPurchaseNotFound = apperror.New(apperror.KindNotFound, "Purchase not found")
	ErrNotPurchaser     = apperror.New(apperror.KindForbidden, "You can only review your own purchases")
	ErrNotCompleted     = apperror.New(apperror.KindBusiness, "You can only review completed purchases")
	ErrAlreadyReviewed  = apperror.New(apperror.KindBusiness, "You have already reviewed this purchase")
	ErrInvalidRating    = apperror.New(apperror.KindValidation, "Rating must be between 1 and 5")
	ErrNotAuthor        = apperror.New(apperror.KindForbidden, "Only the author can change this review")
	ErrNotListingOwner  = apperror.New(apperror.KindForbidden, "Only the prompt owner can respond to reviews")
	ErrOwnReview        = apperror.New(apperror.KindBusiness, "You cannot mark your own review as helpful")
)
