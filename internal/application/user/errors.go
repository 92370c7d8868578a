package user

import "promptmarket/internal/pkg/apperror"

var (
	ErrNotFound          = apperror.New(apperror.KindNotFound, "User not found")
	ErrEmailTaken        = apperror.New(apperror.KindConflict, "Email already registered")
	ErrCannotBanAdmin    = apperror.New(apperror.KindForbidden, "Administrators cannot be banned")
	ErrCannotBanSelf     = apperror.New(apperror.KindForbidden, "You cannot ban yourself")
	ErrNotSeller         = apperror.New(apperror.KindForbidden, "Only sellers can set a payout account")
	ErrPayoutAccountForm = apperror.New(apperror.KindBadRequest, "Invalid payout account id")
)
