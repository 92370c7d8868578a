package auth

import "promptmarket/internal/pkg/apperror"

var (
	ErrEmailPasswordRequired = apperror.New(apperror.KindBadRequest, "Email and password are required")
	ErrInvalidCredentials    = apperror.New(apperror.KindUnauthorized, "Invalid email or password")
	ErrBanned                = apperror.New(apperror.KindForbidden, "This account has been suspended")
	ErrNotAuthenticated      = apperror.New(apperror.KindUnauthorized, "Not authenticated")
)
