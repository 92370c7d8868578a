package reviews

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	reviewsvc "promptmarket/internal/application/reviews"
	"promptmarket/internal/domain"
	"promptmarket/internal/domain/domaintest"
	"promptmarket/internal/infrastructure/database/databasetest"
	"promptmarket/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newApp(db *gorm.DB, caller *domain.User) *fiber.App {
	h := &Handlers{Service: &reviewsvc.Service{DB: db}}
	app := fiber.New()
	app.Get("/prompts/:id/reviews", h.ForListing)
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"user_id": caller.ID.String(), "role": caller.Role})
		return c.Next()
	})
	app.Post("/reviews", h.Create)
	app.Put("/reviews/:id", h.Update)
	app.Delete("/reviews/:id", h.Delete)
	app.Post("/reviews/:id/response", h.Respond)
	app.Post("/reviews/:id/helpful", h.Helpful)
	app.Patch("/admin/reviews/:id", h.Moderate)
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestReviewLifecycle(t *testing.T) {
	db := databasetest.Open(t)
	seller := domaintest.User(t, db, constants.Seller)
	buyer := domaintest.User(t, db, constants.Buyer)
	listing := domaintest.Listing(t, db, seller)
	purchase := domaintest.Purchase(t, db, buyer, listing, domain.PurchaseCompleted, 999, 150)
	app := newApp(db, buyer)

	resp, out := do(t, app, "POST", "/reviews", map[string]interface{}{"purchase_id": purchase.ID.String(), "rating": 6})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out["errors"], "rating")

	resp, out = do(t, app, "POST", "/reviews", map[string]interface{}{"purchase_id": purchase.ID.String(), "rating": 4, "title": "Solid"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := out["data"].(map[string]interface{})["id"].(string)

	resp, out = do(t, app, "POST", "/reviews", map[string]interface{}{"purchase_id": purchase.ID.String(), "rating": 5})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "You have already reviewed this purchase", out["message"])

	l := domaintest.Reload[domain.Listing](t, db, listing.ID)
	assert.InDelta(t, 4.0, l.RatingAvg, 0.001)
	assert.Equal(t, 1, l.RatingCount)

	resp, _ = do(t, newApp(db, seller), "POST", "/reviews/"+id+"/response", map[string]string{"response": "Thanks!"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = do(t, app, "POST", "/reviews/"+id+"/response", map[string]string{"response": "Me too"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, newApp(db, seller), "POST", "/reviews/"+id+"/helpful", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, out = do(t, app, "GET", "/prompts/"+listing.ID.String()+"/reviews", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, out["data"].([]interface{}), 1)

	admin := domaintest.User(t, db, constants.Admin)
	resp, _ = do(t, newApp(db, admin), "PATCH", "/admin/reviews/"+id, map[string]interface{}{})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	resp, _ = do(t, newApp(db, admin), "PATCH", "/admin/reviews/"+id, map[string]interface{}{"approved": false})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	l = domaintest.Reload[domain.Listing](t, db, listing.ID)
	assert.Equal(t, 0, l.RatingCount)

	resp, _ = do(t, newApp(db, seller), "DELETE", "/reviews/"+id, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = do(t, app, "DELETE", "/reviews/"+id, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
