package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-commit-reporter/internal/tracing"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// TimingSource exposes recently finished spans.
type TimingSource interface {
	Timings() []tracing.SpanTiming
}

// HealthHandler serves liveness and diagnostics routes.
type HealthHandler struct {
	appName string
	timings TimingSource
}

// NewHealthHandler creates a health handler. timings may be nil when tracing is off.
func NewHealthHandler(appName string, timings TimingSource) *HealthHandler {
	return &HealthHandler{appName: appName, timings: timings}
}

// Register sets up health and debug routes.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/debug/timings", h.Timings)
}

// Health reports that the process is up.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"app":     h.appName,
		"version": Version,
	})
}

// Timings returns the slowest recent spans first.
func (h *HealthHandler) Timings(c fiber.Ctx) error {
	if h.timings == nil {
		return c.JSON(fiber.Map{"enabled": false, "spans": []tracing.SpanTiming{}})
	}
	spans := h.timings.Timings()
	if spans == nil {
		spans = []tracing.SpanTiming{}
	}
	return c.JSON(fiber.Map{"enabled": true, "spans": spans, "count": len(spans)})
}
