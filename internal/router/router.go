package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-go/internal/config"
	"github.com/noah-isme/gema-grading-go/internal/handler"
	"github.com/noah-isme/gema-grading-go/internal/middleware"
	"github.com/noah-isme/gema-grading-go/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler   *handler.GradingHandler
	CriteriaHandler  *handler.CriteriaHandler
	JWTMiddleware    fiber.Handler
	DependencyChecks map[string]handler.DependencyCheck
	// GradeRateLimit caps grade requests per user per minute. Zero uses the
	// limiter default.
	GradeRateLimit   int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DependencyChecks))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.GradingHandler == nil && deps.CriteriaHandler == nil {
		return
	}

	gradingGroup := app.Group(middleware.GradingPathPrefix, jwtMiddleware, middleware.RequireGrader())
	if deps.CriteriaHandler != nil {
		deps.CriteriaHandler.Register(gradingGroup)
	}
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(gradingGroup, middleware.RateLimit("grade", deps.GradeRateLimit, time.Minute))
	}
}
