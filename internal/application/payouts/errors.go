package payouts

import "promptmarket/internal/pkg/apperror"

var (
	ErrNotFound            = apperror.New(apperror.KindNotFound, "Payout not found")
	ErrForbidden           = apperror.New(apperror.KindForbidden, "You do not have access to this payout")
	ErrInvalidAmount       = apperror.New(apperror.KindValidation, "Payout amount must be greater than zero")
	ErrInsufficientBalance = apperror.New(apperror.KindBusiness, "Insufficient balance for payout")
	ErrAmountBelowSale     = apperror.New(apperror.KindBusiness, "Payout amount must cover at least one sale")
	ErrInvalidState        = apperror.New(apperror.KindConflict, "Payout cannot change from its current status")
	ErrNoPayoutAccount     = apperror.New(apperror.KindBusiness, "Seller has no connected payout account")
)
