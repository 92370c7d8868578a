package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"promptmarket/internal/app"
	"promptmarket/internal/application/payments/paymenttest"
	"promptmarket/internal/config"
	"promptmarket/internal/infrastructure/database/databasetest"
	"promptmarket/internal/middleware"
	"promptmarket/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *app.Container) {
	t.Helper()
	db := databasetest.Open(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := &app.Container{
		Config: &config.Config{Currency: "usd", CommissionRate: 0.15, HealthAdminKey: "k"},
		DB:     db,
		SQL:    sqlDB,
		Rdb:    rdb,
	}
	c.Wire(paymenttest.New())
	return CreateApp(c), c
}

type client struct {
	t      *testing.T
	app    *fiber.App
	cookie *http.Cookie
}

func (cl *client) do(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	cl.t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if cl.cookie != nil {
		req.AddCookie(cl.cookie)
	}
	resp, err := cl.app.Test(req)
	require.NoError(cl.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookieName {
			cl.cookie = ck
		}
	}
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func signup(t *testing.T, fa *fiber.App, email, role string) *client {
	t.Helper()
	cl := &client{t: t, app: fa}
	resp, _ := cl.do("POST", "/api/auth/register", map[string]string{
		"name": "Test User", "email": email, "password": "Secret123!", "role": role,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = cl.do("POST", "/api/auth/login", map[string]string{"email": email, "password": "Secret123!"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, cl.cookie)
	return cl
}

func TestPublicRoutes(t *testing.T) {
	fa, _ := newTestApp(t)
	anon := &client{t: t, app: fa}

	resp, out := anon.do("GET", "/api/payments/public-key", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pk_test_fake", out["data"].(map[string]interface{})["publishable_key"])

	resp, _ = anon.do("GET", "/api/prompts", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = anon.do("GET", "/api/categories", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = anon.do("GET", "/health/json", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest("GET", "/metrics", nil)
	mresp, err := fa.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, mresp.StatusCode)
}

func TestAuthAndPermissions(t *testing.T) {
	fa, _ := newTestApp(t)
	anon := &client{t: t, app: fa}

	resp, _ := anon.do("GET", "/purchases", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp, _ = anon.do("POST", "/api/payments/webhook", map[string]string{"type": "x"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	buyer := signup(t, fa, "buyer@example.com", constants.Buyer)
	resp, _ = buyer.do("POST", "/api/prompts", map[string]interface{}{
		"title": "t", "description": "d", "content": "c", "ai_model": "m", "price_type": "free",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = buyer.do("GET", "/api/admin/analytics", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = buyer.do("PUT", "/purchases/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFreePromptCheckout(t *testing.T) {
	fa, c := newTestApp(t)
	seller := signup(t, fa, "seller@example.com", constants.Seller)

	resp, out := seller.do("POST", "/api/prompts", map[string]interface{}{
		"title": "Haiku generator", "description": "Writes haiku", "content": "You are a poet.",
		"ai_model": "gpt-4o", "price_type": "free",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	promptID := out["data"].(map[string]interface{})["id"].(string)
	resp, _ = seller.do("POST", "/api/prompts/"+promptID+"/submit", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	buyer := signup(t, fa, "buyer@example.com", constants.Buyer)
	resp, _ = buyer.do("POST", "/api/payments/create-intent", map[string]string{"listing_id": promptID})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	resp, _ = buyer.do("GET", "/api/prompts/"+promptID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	admin := signup(t, fa, "admin@example.com", constants.Buyer)
	require.NoError(t, c.DB.Table("Users").Where("email = ?", "admin@example.com").Update("role", constants.Admin).Error)
	resp, _ = admin.do("POST", "/api/auth/login", map[string]string{"email": "admin@example.com", "password": "Secret123!"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = admin.do("POST", "/api/admin/prompts/"+promptID+"/approve", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, out = buyer.do("POST", "/api/payments/create-intent", map[string]string{"listing_id": promptID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "completed", data["status"])

	resp, out = buyer.do("GET", "/purchases", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, out["data"], 1)

	resp, out = buyer.do("GET", "/api/prompts/"+promptID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "You are a poet.", out["data"].(map[string]interface{})["content"])

	resp, _ = buyer.do("POST", "/api/payments/create-intent", map[string]string{"listing_id": promptID})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
