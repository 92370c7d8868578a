package payouts

import (
	"time"

	payoutsvc "promptmarket/internal/application/payouts"
	usersvc "promptmarket/internal/application/user"
	"promptmarket/internal/interfaces/handlers/params"
	"promptmarket/internal/pkg/money"
	"promptmarket/internal/pkg/pagination"
	"promptmarket/internal/pkg/response"
	"promptmarket/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *payoutsvc.Service
	Users   *usersvc.Service
}

type payoutRequest struct {
	Amount       money.Cents `json:"amount" validate:"gt=0"`
	ScheduledFor *time.Time  `json:"scheduled_for"`
}

type accountRequest struct {
	StripeAccountID string `json:"stripe_account_id" validate:"required"`
}

// Earnings GET /api/seller/earnings
func (h *Handlers) Earnings(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	u, err := h.Users.Get(c.UserContext(), p.ID)
	if err != nil {
		return response.FromError(c, err)
	}
	pending, err := h.Service.PendingEarnings(c.UserContext(), p.ID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Earnings retrieved successfully", fiber.Map{
		"total_sales":        u.TotalSales,
		"total_earnings":     u.TotalEarnings,
		"pending_earnings":   pending,
		"payout_account_set": u.StripeAccountID != nil,
	}, nil)
}

// List GET /api/seller/payouts
func (h *Handlers) List(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	list, meta, err := h.Service.ListBySeller(c.UserContext(), p.ID, pagination.FromQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payouts retrieved successfully", list, meta)
}

// Request POST /api/seller/payouts
func (h *Handlers) Request(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	payout, err := h.Service.CreatePayout(c.UserContext(), p.ID, req.Amount, req.ScheduledFor)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Payout scheduled", payout)
}

// SetAccount PUT /api/seller/payout-account
func (h *Handlers) SetAccount(c *fiber.Ctx) error {
	p, err := params.Caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, params.ErrInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return response.FromError(c, err)
	}
	if _, err := h.Users.SetPayoutAccount(c.UserContext(), p.ID, req.StripeAccountID); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payout account saved", nil, nil)
}

// Process POST /api/admin/payouts/process
func (h *Handlers) Process(c *fiber.Ctx) error {
	n, err := h.Service.ProcessScheduled(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Scheduled payouts processed", fiber.Map{"processed": n}, nil)
}

// Retry POST /api/admin/payouts/:id/retry
func (h *Handlers) Retry(c *fiber.Ctx) error {
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	payout, err := h.Service.Retry(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payout queued for retry", payout, nil)
}
