package taxonomy

import (
	taxsvc "promptmarket/internal/application/taxonomy"
	"promptmarket/internal/interfaces/handlers/params"
	"promptmarket/internal/pkg/response"
	"promptmarket/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *taxsvc.Service
}

type categoryRequest struct {
	Name        string     `json:"name" validate:"required,max=80"`
	Description string     `json:"description" validate:"max=500"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

type tagRequest struct {
	Name string `json:"name" validate:"required,max=40"`
}

// Categories GET /api/categories
func (h *Handlers) Categories(c *fiber.Ctx) error {
	list, err := h.Service.ListCategories(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Categories retrieved successfully", list, nil)
}

// Tags GET /api/tags
func (h *Handlers) Tags(c *fiber.Ctx) error {
	list, err := h.Service.ListTags(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Tags retrieved successfully", list, nil)
}

// CreateCategory POST /api/admin/categories
func (h *Handlers) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	cat, err := h.Service.CreateCategory(c.UserContext(), req.Name, req.Description, req.ParentID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Category created successfully", cat)
}

// CreateTag POST /api/admin/tags
func (h *Handlers) CreateTag(c *fiber.Ctx) error {
	var req tagRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	tag, err := h.Service.CreateTag(c.UserContext(), req.Name)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Tag created successfully", tag)
}
