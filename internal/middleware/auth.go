package middleware

import (
	"promptmarket/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocal = "user"

// RequireAuth rejects requests without a session user.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUser(c); !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the raw session user (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// Principal is the typed session user.
type Principal struct {
	ID    uuid.UUID
	Name  string
	Email string
	Role  string
}

// CurrentUser decodes the session user.
func CurrentUser(c *fiber.Ctx) (Principal, bool) {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return Principal{}, false
	}
	raw, _ := m["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return Principal{}, false
	}
	return Principal{ID: id, Name: str(m["name"]), Email: str(m["email"]), Role: str(m["role"])}, true
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
