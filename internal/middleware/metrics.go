package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/metrics"
)

// HTTPMetrics records duration and count of every request, labelled by
// route pattern rather than raw path to keep label cardinality bounded.
func HTTPMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.ObserveHTTPRequest(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}
