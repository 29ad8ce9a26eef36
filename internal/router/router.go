// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/handler"
	"github.com/pitchdreamers/pitch-booking/internal/metrics"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
}
