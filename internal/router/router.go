package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/green-campus-api/internal/config"
	"github.com/noah-isme/green-campus-api/internal/handler"
	"github.com/noah-isme/green-campus-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityHandler     *handler.ActivityHandler
	VerificationHandler *handler.VerificationHandler
	WalletHandler       *handler.WalletHandler
	WalletStreamHandler *handler.WalletStreamHandler
	RewardHandler       *handler.RewardHandler
	AdminHandler        *handler.AdminHandler
	JWTMiddleware       fiber.Handler
	HealthProbes        map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	protected := api.Group("", jwtMiddleware)

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(protected.Group("/activities"))
	}
	if deps.VerificationHandler != nil {
		deps.VerificationHandler.Register(protected)
	}
	if deps.WalletHandler != nil {
		deps.WalletHandler.Register(protected)
	}
	if deps.WalletStreamHandler != nil {
		deps.WalletStreamHandler.Register(protected)
	}
	if deps.RewardHandler != nil {
		deps.RewardHandler.Register(protected)
	}
	if deps.AdminHandler != nil {
		deps.AdminHandler.Register(protected.Group("/admin"))
	}
}
