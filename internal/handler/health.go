package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports whether the service and its backing stores are
// reachable.  Redis is optional: when it is down the service degrades to
// in-process fallbacks, so only the database decides the status code.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	db := "up"
	if err := h.DB.PingContext(ctx); err != nil {
		db, status, code = "down", "degraded", http.StatusServiceUnavailable
	}
	cache := "disabled"
	if h.Redis != nil {
		cache = "up"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			cache = "down"
		}
	}
	return c.JSON(code, echo.Map{"status": status, "database": db, "redis": cache})
}
