package bootstrap

import (
	"context"

	"promptmarket/internal/app"
	"promptmarket/internal/config"
	"promptmarket/internal/infrastructure/logging"
	"promptmarket/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for Vercel serverless (api handler imports this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg)
	c, err := app.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return router.CreateApp(c), nil
}
