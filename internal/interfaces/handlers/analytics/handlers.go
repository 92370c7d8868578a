package analytics

import (
	analyticssvc "promptmarket/internal/application/analytics"
	"promptmarket/internal/interfaces/handlers/params"
	"promptmarket/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *analyticssvc.Service
}

// Seller GET /api/seller/analytics
func (h *Handlers) Seller(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	d, err := h.Service.SellerDashboard(c.UserContext(), p.ID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Analytics retrieved successfully", d, nil)
}

// Platform GET /api/admin/analytics
func (h *Handlers) Platform(c *fiber.Ctx) error {
	s, err := h.Service.PlatformSummary(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Analytics retrieved successfully", s, nil)
}
