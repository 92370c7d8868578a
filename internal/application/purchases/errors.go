package purchases

import "promptmarket/internal/pkg/apperror"

var (
	ErrNotFound          = apperror.New(apperror.KindNotFound, "Purchase not found")
	ErrListingNotFound   = apperror.New(apperror.KindNotFound, "Prompt not found")
	ErrSelfPurchase      = apperror.New(apperror.KindBusiness, "You cannot purchase your own prompt")
	ErrDuplicatePurchase = apperror.New(apperror.KindBusiness, "You have already purchased this prompt")
	ErrUnavailable       = apperror.New(apperror.KindBusiness, "This prompt is not available for purchase")
	ErrInvalidState      = apperror.New(apperror.KindBusiness, "Purchase is not in a valid state for this operation")
	ErrBuyerBanned       = apperror.New(apperror.KindForbidden, "Your account is suspended")
	ErrForbidden         = apperror.New(apperror.KindForbidden, "You do not have access to this purchase")
)
