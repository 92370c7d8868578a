package payments

import (
	paysvc "promptmarket/internal/application/payments"
	"promptmarket/internal/interfaces/handlers/params"
	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"
	"promptmarket/internal/pkg/response"
	"promptmarket/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *paysvc.Service
}

type intentRequest struct {
	ListingID uuid.UUID    `json:"listing_id" validate:"required"`
	Amount    *money.Cents `json:"amount"`
}

type confirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

type refundRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// PublicKey GET /api/payments/public-key
func (h *Handlers) PublicKey(c *fiber.Ctx) error {
	return response.Success(c, "Publishable key", fiber.Map{"publishable_key": h.Service.PublicKey()}, nil)
}

// CreateIntent POST /api/payments/create-intent
func (h *Handlers) CreateIntent(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req intentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.CreateIntent(c.UserContext(), p.ID, req.ListingID, req.Amount)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment intent created", out, nil)
}

// Confirm POST /api/payments/confirm
func (h *Handlers) Confirm(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.ConfirmIntent(c.UserContext(), p.ID, req.PaymentIntentID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment confirmed", out, nil)
}

// Webhook POST /api/payments/webhook. The raw body is verified before it is
// decoded, so no body parser may run ahead of this route.
func (h *Handlers) Webhook(c *fiber.Ctx) error {
	raw := c.BodyRaw()
	if len(raw) == 0 {
		log.Warn().Msg("webhook received empty body")
		return response.Error(c, "Webhook Error: empty body", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.HandleWebhook(c.UserContext(), raw, c.Get("Stripe-Signature")); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Webhook received", fiber.Map{"received": true}, nil)
}

// History GET /api/payments/history
func (h *Handlers) History(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	list, meta, err := h.Service.History(c.UserContext(), p.ID, pagination.FromQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payments retrieved successfully", list, meta)
}

// Get GET /api/payments/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	payment, err := h.Service.Get(c.UserContext(), p.ID, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment retrieved successfully", payment, nil)
}

// Refund POST /api/admin/purchases/:id/refund
func (h *Handlers) Refund(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req refundRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	purchase, err := h.Service.RefundPurchase(c.UserContext(), p.ID, id, req.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Purchase refunded", purchase, nil)
}
