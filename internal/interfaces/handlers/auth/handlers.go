package auth

import (
	authsvc "promptmarket/internal/application/auth"
	usersvc "promptmarket/internal/application/user"
	"promptmarket/internal/middleware"
	"promptmarket/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	UserFinder authsvc.UserFinder
	Users      *usersvc.Service
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register POST /api/auth/register
func (h *Handlers) Register(c *fiber.Ctx) error {
	var in usersvc.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	u, err := h.Users.Register(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, err)
	}
	log.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user registered")
	return response.SuccessCreated(c, "Registration successful", fiber.Map{"user": u})
}

// Login POST /api/auth/login: authenticate, start a fresh session, record it
// under the user's session set and set the cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, authsvc.ErrEmailPasswordRequired)
	}
	user, err := h.UserFinder.FindByEmailAndPassword(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return response.FromError(c, err)
	}

	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID: user.ID.String(),
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
	})
	usersvc.TrackSession(c.UserContext(), h.Rdb, user.ID.String(), sessionID)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)

	return response.Success(c, "Login successful", fiber.Map{"user": user}, nil)
}

// Me GET /api/auth/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	p, ok := middleware.CurrentUser(c)
	if !ok {
		if middleware.GetSessionID(c) != "" {
			log.Debug().Str("path", c.Path()).Msg("session id present but no user in session data")
		}
		return response.FromError(c, authsvc.ErrNotAuthenticated)
	}
	if h.Users == nil {
		return response.Success(c, "Authenticated", fiber.Map{"user": fiber.Map{
			"id": p.ID, "name": p.Name, "email": p.Email, "role": p.Role,
		}}, nil)
	}
	u, err := h.Users.Get(c.UserContext(), p.ID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": u}, nil)
}

// Logout DELETE /api/auth/logout
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := c.UserContext()
	if p, ok := middleware.CurrentUser(c); ok {
		usersvc.ForgetSession(ctx, h.Rdb, p.ID.String(), sessionID)
	}
	if sessionID != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}
