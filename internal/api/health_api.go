package api

import (
	"context"
	"time"

	"go-fleetreport/internal/database"
	"go-fleetreport/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type HealthApi struct {
	DB      *database.MongodbDB
	Metrics *metrics.Metrics
}

func NewHealthApi(db *database.MongodbDB, m *metrics.Metrics) *HealthApi {
	return &HealthApi{DB: db, Metrics: m}
}

// Setup registers the health check and metrics routes.
func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/health/ready", h.Ready)
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.Metrics.Handler()))
	}
}

// HealthCheck godoc
func (h *HealthApi) HealthCheck(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Ready reports whether the database answers a ping.
func (h *HealthApi) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendString("OK")
}
