package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/peak-go-api/internal/config"
	"github.com/noah-isme/peak-go-api/internal/handler"
	"github.com/noah-isme/peak-go-api/internal/middleware"
	"github.com/noah-isme/peak-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	PaperHandler      *handler.PaperHandler
	UserHandler       *handler.UserHandler
	HealthProbes      map[string]handler.HealthProbe
	// JWTMiddleware guards the evaluation routes when set. Nil leaves them open.
	JWTMiddleware fiber.Handler
	// EvaluationLimiter throttles evaluate and reset calls.
	EvaluationLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	api := app.Group("/api")

	if deps.EvaluationHandler != nil {
		var readGuards, writeGuards []fiber.Handler
		if deps.JWTMiddleware != nil {
			readGuards = append(readGuards, deps.JWTMiddleware, middleware.RequireRole("teacher"))
			writeGuards = append(writeGuards, deps.JWTMiddleware, middleware.RequireRole("teacher"))
		}
		if deps.EvaluationLimiter != nil {
			writeGuards = append(writeGuards, deps.EvaluationLimiter)
		}

		deps.EvaluationHandler.Register(api, writeGuards...)
		deps.EvaluationHandler.RegisterHistory(api, readGuards...)
	}

	if deps.PaperHandler != nil {
		deps.PaperHandler.Register(api)
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api)
	}
}
