package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/booking"
	"github.com/pitchdreamers/pitch-booking/internal/model"
	"github.com/pitchdreamers/pitch-booking/internal/repository"
)

// FieldHandler serves the field catalogue and slot availability.
type FieldHandler struct {
	Fields    *repository.FieldRepo
	Allocator Allocator
}

// List returns one page of fields.
func (h *FieldHandler) List(c echo.Context) error {
	page, limit, offset := pagination(c)
	ctx, cancel := dbCtx(c)
	defer cancel()

	fields, total, err := h.Fields.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	meta := newPageMeta(page, total)
	return c.JSON(http.StatusOK, echo.Map{
		"items":      fields,
		"page":       meta.Page,
		"page_size":  meta.PageSize,
		"total":      meta.Total,
		"totalPages": meta.TotalPages,
	})
}

func (h *FieldHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	f, err := h.Fields.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// Availability lists the four slots of ?date= with their occupancy.
func (h *FieldHandler) Availability(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	date := c.QueryParam("date")
	if date == "" {
		return writeError(c, booking.Validation("date is required"))
	}
	slots, err := h.Allocator.FieldAvailability(c.Request().Context(), id, date)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"field_id": id, "date": date, "slots": slots})
}

// Occupancy reports one slot: ?date=&slot=.
func (h *FieldHandler) Occupancy(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	date := c.QueryParam("date")
	slot, err := strconv.Atoi(c.QueryParam("slot"))
	if date == "" || err != nil {
		return writeError(c, booking.Validation("date and slot are required"))
	}
	occ, err := h.Allocator.GetOccupancy(c.Request().Context(), id, date, slot)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, occ)
}

// Update applies a partial update.  Only the members present in the body
// are written.
func (h *FieldHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var patch model.FieldPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if patch.Empty() {
		return writeError(c, booking.Validation("no updatable fields supplied"))
	}
	if patch.Name.Set && strings.TrimSpace(patch.Name.Value) == "" {
		return writeError(c, booking.Validation("name cannot be empty"))
	}
	if patch.PricePerHour.Set && patch.PricePerHour.Value < 0 {
		return writeError(c, booking.Validation("price_per_hour cannot be negative"))
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Fields.Update(ctx, id, patch); err != nil {
		return writeError(c, err)
	}
	f, err := h.Fields.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}
