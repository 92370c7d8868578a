package purchases

import (
	purchasesvc "promptmarket/internal/application/purchases"
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
	Service *purchasesvc.Service
}

type createRequest struct {
	ListingID uuid.UUID    `json:"listing_id" validate:"required"`
	Amount    *money.Cents `json:"amount"`
}

// Create POST /purchases
func (h *Handlers) Create(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	purchase, err := h.Service.Initiate(c.UserContext(), p.ID, req.ListingID, req.Amount)
	if err != nil {
		log.Info().Err(err).Str("buyer_id", p.ID.String()).Str("listing_id", req.ListingID.String()).Msg("purchase rejected")
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Purchase created successfully", purchase)
}

// List GET /purchases
func (h *Handlers) List(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	list, meta, err := h.Service.ListByBuyer(c.UserContext(), p.ID, pagination.FromQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Purchases retrieved successfully", list, meta)
}

// Get GET /purchases/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	purchase, err := h.Service.GetForBuyer(c.UserContext(), p.ID, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Purchase retrieved successfully", purchase, nil)
}

// Sales GET /api/seller/sales
func (h *Handlers) Sales(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	list, meta, err := h.Service.ListBySeller(c.UserContext(), p.ID, pagination.FromQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Sales retrieved successfully", list, meta)
}

// Immutable answers PUT, PATCH and DELETE on a purchase. Purchases change
// state only through payment, webhook and refund flows.
func (h *Handlers) Immutable(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, "GET")
	return response.Error(c, "Purchases cannot be modified", fiber.StatusMethodNotAllowed, nil)
}
