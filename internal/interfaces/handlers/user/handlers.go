package user

import (
	"context"

	usersvc "promptmarket/internal/application/user"
	"promptmarket/internal/domain"
	"promptmarket/internal/interfaces/handlers/params"
	"promptmarket/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *usersvc.Service
}

// Profile GET /api/users/:id returns the public seller profile.
func (h *Handlers) Profile(c *fiber.Ctx) error {
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	u, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User retrieved successfully", fiber.Map{
		"id":          u.ID,
		"name":        u.Name,
		"role":        u.Role,
		"total_sales": u.TotalSales,
		"createdAt":   u.CreatedAt,
	}, nil)
}

// Ban PATCH /api/admin/users/:id/ban
func (h *Handlers) Ban(c *fiber.Ctx) error {
	return h.moderate(c, "User banned", h.Service.Ban)
}

// Unban PATCH /api/admin/users/:id/unban
func (h *Handlers) Unban(c *fiber.Ctx) error {
	return h.moderate(c, "User unbanned", h.Service.Unban)
}

func (h *Handlers) moderate(c *fiber.Ctx, msg string, fn func(context.Context, uuid.UUID, uuid.UUID) (*domain.User, error)) error {
	admin, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	u, err := fn(c.UserContext(), admin.ID, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, msg, u, nil)
}
