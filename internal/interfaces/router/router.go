package router

import (
	"promptmarket/internal/app"
	analyticshandler "promptmarket/internal/interfaces/handlers/analytics"
	authhandler "promptmarket/internal/interfaces/handlers/auth"
	healthhandler "promptmarket/internal/interfaces/handlers/health"
	listhandler "promptmarket/internal/interfaces/handlers/listings"
	payhandler "promptmarket/internal/interfaces/handlers/payments"
	payouthandler "promptmarket/internal/interfaces/handlers/payouts"
	purchasehandler "promptmarket/internal/interfaces/handlers/purchases"
	reviewhandler "promptmarket/internal/interfaces/handlers/reviews"
	taxhandler "promptmarket/internal/interfaces/handlers/taxonomy"
	userhandler "promptmarket/internal/interfaces/handlers/user"
	"promptmarket/internal/middleware"
	"promptmarket/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CreateApp builds the Fiber app with all global middleware and routes.
func CreateApp(c *app.Container) *fiber.App {
	cfg := c.Config
	fa := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	fa.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
		Production:    cfg.IsProduction(),
	}))

	// Signed by the gateway; mounted ahead of the session middleware.
	ph := &payhandler.Handlers{Service: c.Payments}
	fa.Post("/api/payments/webhook", ph.Webhook)
	fa.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	fa.Use(middleware.Session(c.Rdb))
	fa.Use(middleware.HealthMarker(c.Rdb))
	fa.Use(middleware.Tracing())
	fa.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Rdb: c.Rdb, DB: c.SQL, HealthAdminKey: cfg.HealthAdminKey}
	fa.Get("/reset", hh.Reset)
	fa.Get("/health/json", hh.JSON)
	fa.Get("/health/errors", hh.Errors)

	sessionCfg := middleware.SessionConfig{
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	auth := middleware.RequireAuth()
	can := middleware.AuthorizePermission

	ah := &authhandler.Handlers{UserFinder: c.Auth, Users: c.Users, Rdb: c.Rdb, Config: sessionCfg}
	ag := fa.Group("/api/auth")
	ag.Post("/register", ah.Register)
	ag.Post("/login", ah.Login)
	ag.Get("/me", auth, ah.Me)
	ag.Delete("/logout", auth, ah.Logout)

	uh := &userhandler.Handlers{Service: c.Users}
	fa.Get("/api/users/:id", uh.Profile)

	lh := &listhandler.Handlers{Service: c.Listings}
	rh := &reviewhandler.Handlers{Service: c.Reviews}
	pg := fa.Group("/api/prompts")
	pg.Get("/", lh.Search)
	pg.Get("/:id", lh.Get)
	pg.Get("/:id/reviews", rh.ForListing)
	pg.Post("/", auth, can(constants.ManagePrompts), lh.Create)
	pg.Put("/:id", auth, can(constants.ManagePrompts), lh.Update)
	pg.Post("/:id/submit", auth, can(constants.ManagePrompts), lh.Submit)
	pg.Post("/:id/archive", auth, lh.Archive)
	pg.Get("/:id/history", auth, lh.History)

	th := &taxhandler.Handlers{Service: c.Taxonomy}
	fa.Get("/api/categories", th.Categories)
	fa.Get("/api/tags", th.Tags)

	puh := &purchasehandler.Handlers{Service: c.Purchases}
	pr := fa.Group("/purchases", auth)
	pr.Post("/", can(constants.PurchasePrompts), puh.Create)
	pr.Get("/", puh.List)
	pr.Get("/:id", puh.Get)
	pr.Put("/:id", puh.Immutable)
	pr.Patch("/:id", puh.Immutable)
	pr.Delete("/:id", puh.Immutable)

	fa.Get("/api/payments/public-key", ph.PublicKey)
	pay := fa.Group("/api/payments", auth)
	pay.Post("/create-intent", can(constants.PurchasePrompts), ph.CreateIntent)
	pay.Post("/confirm", ph.Confirm)
	pay.Get("/history", ph.History)
	pay.Get("/:id", ph.Get)

	rg := fa.Group("/api/reviews", auth)
	rg.Post("/", can(constants.PurchasePrompts), rh.Create)
	rg.Put("/:id", rh.Update)
	rg.Delete("/:id", rh.Delete)
	rg.Post("/:id/response", rh.Respond)
	rg.Post("/:id/helpful", rh.Helpful)

	poh := &payouthandler.Handlers{Service: c.Payouts, Users: c.Users}
	anh := &analyticshandler.Handlers{Service: c.Analytics}
	sg := fa.Group("/api/seller", auth)
	sg.Get("/earnings", can(constants.ViewEarnings), poh.Earnings)
	sg.Get("/payouts", can(constants.ViewEarnings), poh.List)
	sg.Post("/payouts", can(constants.RequestPayout), poh.Request)
	sg.Put("/payout-account", can(constants.RequestPayout), poh.SetAccount)
	sg.Get("/analytics", can(constants.ViewEarnings), anh.Seller)
	sg.Get("/prompts", can(constants.ManagePrompts), lh.Mine)
	sg.Get("/sales", can(constants.ViewEarnings), puh.Sales)

	ad := fa.Group("/api/admin", auth)
	ad.Post("/prompts/:id/approve", can(constants.ModeratePrompts), lh.Approve)
	ad.Post("/prompts/:id/reject", can(constants.ModeratePrompts), lh.Reject)
	ad.Post("/categories", can(constants.ManageTaxonomy), th.CreateCategory)
	ad.Post("/tags", can(constants.ManageTaxonomy), th.CreateTag)
	ad.Post("/purchases/:id/refund", can(constants.RefundPurchases), ph.Refund)
	ad.Post("/payouts/process", can(constants.ManagePayouts), poh.Process)
	ad.Post("/payouts/:id/retry", can(constants.ManagePayouts), poh.Retry)
	ad.Patch("/reviews/:id", can(constants.ModerateReviews), rh.Moderate)
	ad.Get("/analytics", can(constants.ViewPlatform), anh.Platform)
	ad.Patch("/users/:id/ban", can(constants.ManageUsers), uh.Ban)
	ad.Patch("/users/:id/unban", can(constants.ManageUsers), uh.Unban)

	return fa
}
