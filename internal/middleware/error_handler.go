package middleware

import (
	"errors"

	"promptmarket/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is Fiber's global error handler. Fiber errors keep their
// status; everything else goes through the application error mapping.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Error(c, fe.Message, fe.Code, nil)
	}
	return response.FromError(c, err)
}
