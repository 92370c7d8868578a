package listings

import "promptmarket/internal/pkg/apperror"

var (
	ErrNotFound      = apperror.New(apperror.KindNotFound, "Prompt not found")
	ErrNotSeller     = apperror.New(apperror.KindForbidden, "Only sellers can list prompts")
	ErrNotOwner      = apperror.New(apperror.KindForbidden, "You do not own this prompt")
	ErrArchived      = apperror.New(apperror.KindBusiness, "Archived prompts cannot be changed")
	ErrInvalidState  = apperror.New(apperror.KindConflict, "Prompt cannot change from its current status")
	ErrUnknownTag    = apperror.New(apperror.KindValidation, "Unknown tag")
	ErrUnknownCateg  = apperror.New(apperror.KindValidation, "Unknown category")
	ErrReasonMissing = apperror.New(apperror.KindValidation, "A rejection reason is required")
)
