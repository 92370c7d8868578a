package user

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	usersvc "promptmarket/internal/application/user"
	"promptmarket/internal/domain"
	"promptmarket/internal/domain/domaintest"
	"promptmarket/internal/infrastructure/database/databasetest"
	"promptmarket/internal/middleware"
	"promptmarket/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanUnban(t *testing.T) {
	db := databasetest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	admin := domaintest.User(t, db, constants.Admin)
	seller := domaintest.User(t, db, constants.Seller)
	require.NoError(t, mr.Set(middleware.SessionRedisPrefix+"sid-1", `{"user":{}}`))
	_, err := mr.SAdd(middleware.UserSessionsPrefix+seller.ID.String(), "sid-1")
	require.NoError(t, err)

	h := &Handlers{Service: &usersvc.Service{DB: db, Rdb: rdb}}
	app := fiber.New()
	app.Get("/users/:id", h.Profile)
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"user_id": admin.ID.String(), "role": admin.Role})
		return c.Next()
	})
	app.Patch("/admin/users/:id/ban", h.Ban)
	app.Patch("/admin/users/:id/unban", h.Unban)

	resp, err := app.Test(httptest.NewRequest("PATCH", "/admin/users/"+seller.ID.String()+"/ban", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, mr.Exists(middleware.SessionRedisPrefix+"sid-1"))
	assert.True(t, domaintest.Reload[domain.User](t, db, seller.ID).IsBanned())

	resp, err = app.Test(httptest.NewRequest("PATCH", "/admin/users/"+admin.ID.String()+"/ban", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("PATCH", "/admin/users/"+seller.ID.String()+"/unban", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, domaintest.Reload[domain.User](t, db, seller.ID).IsBanned())

	resp, err = app.Test(httptest.NewRequest("GET", "/users/"+seller.ID.String(), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	data := out["data"].(map[string]interface{})
	assert.Equal(t, seller.Name, data["name"])
	assert.NotContains(t, data, "email")
}
