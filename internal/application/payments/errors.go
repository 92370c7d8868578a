package payments

import "promptmarket/internal/pkg/apperror"

var (
	ErrPaymentNotFound    = apperror.New(apperror.KindNotFound, "Payment not found")
	ErrForbidden          = apperror.New(apperror.KindForbidden, "You do not have access to this payment")
	ErrNotSucceeded       = apperror.New(apperror.KindBusiness, "Payment has not succeeded")
	ErrMissingSignature   = apperror.New(apperror.KindBadRequest, "Missing webhook signature")
	ErrInvalidSignature   = apperror.New(apperror.KindBadRequest, "Invalid webhook signature")
	ErrWebhookProcessing  = apperror.New(apperror.KindBadRequest, "Webhook processing failed")
	ErrGatewayUnavailable = apperror.New(apperror.KindExternal, "Payment gateway error")
	ErrRefundFailed       = apperror.New(apperror.KindExternal, "Refund failed at the payment gateway")
	ErrNotRefundable      = apperror.New(apperror.KindBusiness, "Only completed purchases can be refunded")
	// Paid, but the purchase had already left pending.
	ErrPurchaseNotCompleted = apperror.New(apperror.KindConflict, "Payment succeeded but the purchase could not be completed")
)
