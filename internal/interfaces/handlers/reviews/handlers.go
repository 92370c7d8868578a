package reviews

import (
	reviewsvc "promptmarket/internal/application/reviews"
	"promptmarket/internal/interfaces/handlers/params"
	"promptmarket/internal/pkg/pagination"
	"promptmarket/internal/pkg/response"
	"promptmarket/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *reviewsvc.Service
}

type createRequest struct {
	PurchaseID uuid.UUID `json:"purchase_id" validate:"required"`
	Rating     int       `json:"rating" validate:"gte=1,lte=5"`
	Title      *string   `json:"title" validate:"omitempty,max=120"`
	Body       *string   `json:"body" validate:"omitempty,max=5000"`
}

type updateRequest struct {
	Rating int     `json:"rating" validate:"gte=1,lte=5"`
	Title  *string `json:"title" validate:"omitempty,max=120"`
	Body   *string `json:"body" validate:"omitempty,max=5000"`
}

type respondRequest struct {
	Response string `json:"response" validate:"required,max=5000"`
}

type moderateRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

// Create POST /api/reviews
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
	r, err := h.Service.Create(c.UserContext(), p.ID, req.PurchaseID, reviewsvc.Input{Rating: req.Rating, Title: req.Title, Body: req.Body})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Review created successfully", r)
}

// Update PUT /api/reviews/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	r, err := h.Service.Update(c.UserContext(), p.ID, id, reviewsvc.Input{Rating: req.Rating, Title: req.Title, Body: req.Body})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Review updated successfully", r, nil)
}

// Delete DELETE /api/reviews/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), p.ID, p.Role, id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Review deleted successfully", nil, nil)
}

// Respond POST /api/reviews/:id/response
func (h *Handlers) Respond(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req respondRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	r, err := h.Service.Respond(c.UserContext(), p.ID, id, req.Response)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Response saved", r, nil)
}

// Helpful POST /api/reviews/:id/helpful
func (h *Handlers) Helpful(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	r, err := h.Service.MarkHelpful(c.UserContext(), p.ID, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Marked as helpful", r, nil)
}

// Moderate PATCH /api/admin/reviews/:id
func (h *Handlers) Moderate(c *fiber.Ctx) error {
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req moderateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	r, err := h.Service.Moderate(c.UserContext(), id, *req.Approved)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Review moderated", r, nil)
}

// ForListing GET /api/prompts/:id/reviews
func (h *Handlers) ForListing(c *fiber.Ctx) error {
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	list, meta, err := h.Service.ListForListing(c.UserContext(), id, pagination.FromQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Reviews retrieved successfully", list, meta)
}
