package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pitchdreamers/pitch-booking/internal/booking"
	"github.com/pitchdreamers/pitch-booking/internal/logger"
	"github.com/pitchdreamers/pitch-booking/internal/repository"
)

var kindStatus = map[booking.Kind]int{
	booking.KindNotFound:          http.StatusNotFound,
	booking.KindInvalidSlot:       http.StatusBadRequest,
	booking.KindCapacityExceeded:  http.StatusConflict,
	booking.KindValidation:        http.StatusBadRequest,
	booking.KindResourceExhausted: http.StatusServiceUnavailable,
	booking.KindInternal:          http.StatusInternalServerError,
}

// writeError renders an allocator or repository error.  Internal details
// never reach the client.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found", "code": booking.KindNotFound})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return c.JSON(he.Code, echo.Map{"error": he.Message})
	}

	be := booking.FromError(err)
	status, ok := kindStatus[be.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		logger.FromContext(c).Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err))
		return c.JSON(status, echo.Map{"error": "internal server error", "code": booking.KindInternal})
	}

	body := echo.Map{"error": be.Message, "code": be.Kind}
	if d := be.Capacity; d != nil {
		body["maxUsers"] = d.MaxUsers
		body["plazasDisponibles"] = d.PlazasDisponibles
		body["plazasSolicitadas"] = d.PlazasSolicitadas
		body["plazasReservadas"] = d.PlazasReservadas
	}
	if be.Kind == booking.KindResourceExhausted {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, body)
}
