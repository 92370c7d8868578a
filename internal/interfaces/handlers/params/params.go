// Package params reads route parameters and the caller identity shared by the handlers.
package params

import (
	"promptmarket/internal/middleware"
	"promptmarket/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var (
	ErrInvalidID       = apperror.New(apperror.KindBadRequest, "Invalid id (must be a valid UUID)")
	ErrInvalidBody     = apperror.New(apperror.KindBadRequest, "Invalid request body")
	ErrUnauthenticated = apperror.New(apperror.KindUnauthorized, "Unauthorized")
)

// UUID parses the named route parameter.
func UUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

// QueryUUID parses an optional query value; empty yields nil.
func QueryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("The given data was invalid", map[string][]string{name: {"Must be a valid UUID"}})
	}
	return &id, nil
}

// Caller returns the session principal or an unauthorized error.
func Caller(c *fiber.Ctx) (middleware.Principal, error) {
	p, ok := middleware.CurrentUser(c)
	if !ok {
		return p, ErrUnauthenticated
	}
	return p, nil
}

// Body decodes the JSON body into dst.
func Body(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return ErrInvalidBody
	}
	return nil
}
