package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"promptmarket/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestSession_LoadsUserFromRedis(t *testing.T) {
	rdb := newRedis(t)
	id := uuid.New()
	raw, _ := json.Marshal(map[string]interface{}{
		"user": map[string]interface{}{"user_id": id.String(), "role": constants.Seller, "email": "s@example.com"},
	})
	require.NoError(t, rdb.Set(context.Background(), SessionRedisPrefix+"abc", raw, SessionMaxAge).Err())

	app := fiber.New()
	app.Use(Session(rdb))
	app.Get("/", RequireAuth(), func(c *fiber.Ctx) error {
		p, _ := CurrentUser(c)
		return c.SendString(p.ID.String() + "|" + p.Role)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SessionCookieName+"=s:abc.sig")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	buf := make([]byte, 128)
	n, _ := resp.Body.Read(buf)
	assert.Equal(t, id.String()+"|seller", string(buf[:n]))
}

func TestSession_PersistsNewUser(t *testing.T) {
	rdb := newRedis(t)
	app := fiber.New()
	app.Use(Session(rdb))
	var sid string
	app.Post("/login", func(c *fiber.Ctx) error {
		sid = RegenerateSessionID(c)
		SetSessionUser(c, SessionUser{UserID: uuid.NewString(), Role: constants.Buyer})
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	ttl := rdb.TTL(context.Background(), SessionRedisPrefix+sid).Val()
	assert.Equal(t, SessionMaxAge, ttl)
}

func TestRequireAuth_Anonymous(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequireAuth(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthorizePermission(t *testing.T) {
	cases := []struct {
		role       string
		permission string
		want       int
	}{
		{constants.Buyer, constants.PurchasePrompts, fiber.StatusOK},
		{constants.Buyer, constants.ManagePrompts, fiber.StatusForbidden},
		{constants.Seller, constants.ManagePrompts, fiber.StatusOK},
		{constants.Seller, constants.ModerateReviews, fiber.StatusForbidden},
		{constants.Admin, constants.ManagePayouts, fiber.StatusOK},
		{"", constants.PurchasePrompts, fiber.StatusInternalServerError},
		{constants.Admin, "no_such_permission", fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.permission, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				c.Locals("user", map[string]interface{}{"user_id": uuid.NewString(), "role": tc.role})
				return c.Next()
			})
			app.Get("/", AuthorizePermission(tc.permission), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".promptmarket.io", DevPassword: "letmein"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	do := func(origin, pass string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", origin)
		if pass != "" {
			req.Header.Set("dev-password", pass)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, fiber.StatusOK, do("https://app.promptmarket.io", ""))
	assert.Equal(t, fiber.StatusOK, do("https://evil.example", "letmein"))
	assert.Equal(t, fiber.StatusForbidden, do("https://evil.example", ""))
	assert.Equal(t, fiber.StatusOK, do("http://localhost:3000", ""))

	prod := fiber.New()
	prod.Use(CORS(CORSConfig{AllowedSuffix: ".promptmarket.io", Production: true}))
	prod.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := prod.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "https://app.promptmarket.io")
	resp, err = prod.Test(pre)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.promptmarket.io", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestTracing_KeepsInboundID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing(), RouteLogger())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", id)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get("X-Trace-Id"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "not-a-uuid")
	resp, err = app.Test(req)
	require.NoError(t, err)
	_, perr := uuid.Parse(resp.Header.Get("X-Trace-Id"))
	assert.NoError(t, perr)
}
