package listings

import (
	"strconv"
	"strings"

	listsvc "promptmarket/internal/application/listings"
	"promptmarket/internal/interfaces/handlers/params"
	"promptmarket/internal/middleware"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"
	"promptmarket/internal/pkg/response"
	"promptmarket/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *listsvc.Service
}

// PromptRequest is the create/update body.
type PromptRequest struct {
	Title        string       `json:"title" validate:"required,max=200"`
	Description  string       `json:"description" validate:"required"`
	Content      string       `json:"content" validate:"required"`
	AIModel      string       `json:"ai_model" validate:"required,max=80"`
	PriceType    string       `json:"price_type" validate:"required,price_type"`
	Price        *money.Cents `json:"price"`
	MinimumPrice *money.Cents `json:"minimum_price"`
	CategoryID   *uuid.UUID   `json:"category_id"`
	Tags         []string     `json:"tags" validate:"max=10,dive,required"`
}

func (r PromptRequest) input() listsvc.Input {
	return listsvc.Input{
		Title:        r.Title,
		Description:  r.Description,
		Content:      r.Content,
		AIModel:      r.AIModel,
		PriceType:    r.PriceType,
		Price:        r.Price,
		MinimumPrice: r.MinimumPrice,
		CategoryID:   r.CategoryID,
		TagSlugs:     r.Tags,
	}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func actor(c *fiber.Ctx) (listsvc.Actor, error) {
	p, err := params.Caller(c)
	if err != nil {
		return listsvc.Actor{}, err
	}
	return listsvc.Actor{ID: p.ID, Role: p.Role}, nil
}

// Search GET /api/prompts
func (h *Handlers) Search(c *fiber.Ctx) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return response.FromError(c, err)
	}
	list, meta, err := h.Service.Search(c.UserContext(), f)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Prompts retrieved successfully", list, meta)
}

func filterFromQuery(c *fiber.Ctx) (listsvc.Filter, error) {
	f := listsvc.Filter{
		Query:     c.Query("q"),
		PriceType: c.Query("price_type"),
		Sort:      c.Query("sort", listsvc.SortNewest),
		Direction: c.Query("direction"),
		Page:      pagination.FromQuery(c),
	}
	fields := map[string][]string{}
	var err error
	if f.CategoryID, err = params.QueryUUID(c, "category_id"); err != nil {
		fields["category_id"] = []string{"Must be a valid UUID"}
	}
	if f.SellerID, err = params.QueryUUID(c, "seller_id"); err != nil {
		fields["seller_id"] = []string{"Must be a valid UUID"}
	}
	if raw := c.Query("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.TagSlugs = append(f.TagSlugs, t)
			}
		}
	}
	for name, dst := range map[string]**money.Cents{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil || v < 0 {
			fields[name] = []string{"Must be a non-negative amount"}
			continue
		}
		*dst = money.Ptr(money.FromFloat(v))
	}
	switch f.Sort {
	case listsvc.SortNewest, listsvc.SortPrice, listsvc.SortRating, listsvc.SortPopular:
	default:
		fields["sort"] = []string{"Must be one of: newest price rating popular"}
	}
	if len(fields) > 0 {
		return f, apperror.Validation("The given data was invalid", fields)
	}
	return f, nil
}

// Get GET /api/prompts/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var viewer *listsvc.Actor
	if p, ok := middleware.CurrentUser(c); ok {
		viewer = &listsvc.Actor{ID: p.ID, Role: p.Role}
	}
	l, err := h.Service.Get(c.UserContext(), viewer, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Prompt retrieved successfully", l, nil)
}

// Mine GET /api/seller/prompts
func (h *Handlers) Mine(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	list, meta, err := h.Service.ListBySeller(c.UserContext(), a.ID, pagination.FromQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Prompts retrieved successfully", list, meta)
}

// Create POST /api/prompts
func (h *Handlers) Create(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req PromptRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	l, err := h.Service.Create(c.UserContext(), a, req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Prompt created successfully", l)
}

// Update PUT /api/prompts/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req PromptRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	l, err := h.Service.Update(c.UserContext(), a, id, req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Prompt updated successfully", l, nil)
}

// Submit POST /api/prompts/:id/submit
func (h *Handlers) Submit(c *fiber.Ctx) error {
	return h.transition(c, "Prompt submitted for review", func(a listsvc.Actor, id uuid.UUID) (interface{}, error) {
		return h.Service.Submit(c.UserContext(), a, id)
	})
}

// Archive POST /api/prompts/:id/archive
func (h *Handlers) Archive(c *fiber.Ctx) error {
	return h.transition(c, "Prompt archived", func(a listsvc.Actor, id uuid.UUID) (interface{}, error) {
		return h.Service.Archive(c.UserContext(), a, id)
	})
}

// Approve POST /api/admin/prompts/:id/approve
func (h *Handlers) Approve(c *fiber.Ctx) error {
	return h.transition(c, "Prompt approved", func(a listsvc.Actor, id uuid.UUID) (interface{}, error) {
		return h.Service.Approve(c.UserContext(), a, id)
	})
}

// Reject POST /api/admin/prompts/:id/reject
func (h *Handlers) Reject(c *fiber.Ctx) error {
	var req rejectRequest
	if err := params.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	return h.transition(c, "Prompt rejected", func(a listsvc.Actor, id uuid.UUID) (interface{}, error) {
		return h.Service.Reject(c.UserContext(), a, id, req.Reason)
	})
}

// History GET /api/prompts/:id/history
func (h *Handlers) History(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	events, err := h.Service.History(c.UserContext(), a, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Prompt history retrieved successfully", events, nil)
}

func (h *Handlers) transition(c *fiber.Ctx, msg string, fn func(listsvc.Actor, uuid.UUID) (interface{}, error)) error {
	a, err := actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	l, err := fn(a, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, msg, l, nil)
}
