package analytics

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	analyticssvc "promptmarket/internal/application/analytics"
	"promptmarket/internal/domain"
	"promptmarket/internal/domain/domaintest"
	"promptmarket/internal/infrastructure/cache"
	"promptmarket/internal/infrastructure/database/databasetest"
	"promptmarket/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSellerAndPlatform(t *testing.T) {
	db := databasetest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	seller := domaintest.User(t, db, constants.Seller)
	listing := domaintest.Listing(t, db, seller)
	domaintest.Purchase(t, db, domaintest.User(t, db, constants.Buyer), listing, domain.PurchaseCompleted, 1000, 150)

	h := &Handlers{Service: &analyticssvc.Service{DB: db, Cache: &cache.Cache{Rdb: rdb}}}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"user_id": seller.ID.String(), "role": seller.Role})
		return c.Next()
	})
	app.Get("/seller", h.Seller)
	app.Get("/platform", h.Platform)

	resp, err := app.Test(httptest.NewRequest("GET", "/seller", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	var out struct {
		Data analyticssvc.SellerDashboard `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.EqualValues(t, 1, out.Data.Totals.Sales)
	assert.EqualValues(t, 850, out.Data.Totals.Earnings)
	assert.True(t, mr.Exists(analyticssvc.SellerKey(seller.ID)))

	resp, err = app.Test(httptest.NewRequest("GET", "/platform", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
