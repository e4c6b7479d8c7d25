package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/prmsu-campus/presence-api/internal/config"
	"github.com/prmsu-campus/presence-api/internal/handler"
	"github.com/prmsu-campus/presence-api/internal/middleware"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PresenceHandler  *handler.PresenceHandler
	DirectoryHandler *handler.DirectoryHandler
	MapHandler       *handler.MapHandler
	AdminHandler     *handler.AdminHandler
	JWTMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.PresenceHandler != nil {
		presence := api.Group("/presence", jwtMiddleware, middleware.RateLimit("presence", 30, time.Minute))
		deps.PresenceHandler.Register(presence)
	}

	if deps.DirectoryHandler != nil {
		directory := api.Group("/directory", jwtMiddleware)
		deps.DirectoryHandler.Register(directory)
	}

	if deps.MapHandler != nil {
		maps := api.Group("/map", jwtMiddleware)
		deps.MapHandler.Register(maps)
	}

	if deps.AdminHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.AdminHandler.Register(admin)
	}
}
