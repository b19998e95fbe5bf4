package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/observability"
)

// MetricsSource exposes request counters.
type MetricsSource interface {
	Snapshot() observability.MetricsSnapshot
}

// MetricsHandler serves the in-process request counters.
type MetricsHandler struct {
	source MetricsSource
}

// NewMetricsHandler returns a handler reading from source.
func NewMetricsHandler(source MetricsSource) *MetricsHandler {
	return &MetricsHandler{source: source}
}

// Metrics GET /metrics. Keys are route|method|status for requests and
// route|method|code for errors; latency is the cumulative time per request key.
func (h *MetricsHandler) Metrics(c *fiber.Ctx) error {
	snap := h.source.Snapshot()
	latencyMS := make(map[string]float64, len(snap.Latency))
	for key, total := range snap.Latency {
		latencyMS[key] = float64(total.Microseconds()) / 1000
	}
	return c.JSON(fiber.Map{
		"requests":   snap.Requests,
		"errors":     snap.Errors,
		"latency_ms": latencyMS,
	})
}
