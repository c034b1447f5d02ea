package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pediamatch/intake-service/internal/api/http/handlers"
	"github.com/pediamatch/intake-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Patients       *handlers.PatientsHandler
	SMS            *handlers.SmsWebhookHandler
	Clinics        *handlers.ClinicsHandler
	Auth           *handlers.AuthHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
	// PublicLimiter guards unauthenticated writes; nil disables it.
	PublicLimiter fiber.Handler
	// SMSLimiter guards the provider webhook; nil disables it.
	SMSLimiter fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)
	app.Get("/clinics", cfg.Clinics.List)

	limit := orPassThrough(cfg.PublicLimiter)

	app.Post("/patients", limit, cfg.Patients.Create)
	app.Post("/sms/webhook", orPassThrough(cfg.SMSLimiter), cfg.SMS.Receive)
	app.Post("/auth/operator/login", limit, cfg.Auth.Login)

	app.Get("/patients", cfg.AuthMiddleware.Handle, cfg.Patients.List)
	app.Get("/patients/:id", cfg.AuthMiddleware.Handle, cfg.Patients.Get)
}

func orPassThrough(h fiber.Handler) fiber.Handler {
	if h == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return h
}
