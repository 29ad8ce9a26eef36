package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/repository"
)

type PaymentHandler struct {
	Payments *repository.PaymentRepo
}

func (h *PaymentHandler) List(c echo.Context) error {
	page, limit, offset := pagination(c)
	ctx, cancel := dbCtx(c)
	defer cancel()

	payments, total, err := h.Payments.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": payments, "meta": newPageMeta(page, total)})
}
