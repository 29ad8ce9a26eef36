package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/booking"
	"github.com/pitchdreamers/pitch-booking/internal/model"
	"github.com/pitchdreamers/pitch-booking/internal/repository"
	"github.com/pitchdreamers/pitch-booking/internal/service"
)

// Allocator is the capacity-checked write side of reservations.
type Allocator interface {
	CreateReservation(ctx context.Context, in service.CreateInput) (service.CreateResult, error)
	AddUsers(ctx context.Context, reservationID uint64, users []booking.Allocation) (booking.Occupancy, error)
	ReplaceUsers(ctx context.Context, reservationID uint64, users []booking.Allocation) (booking.Occupancy, error)
	PatchUsers(ctx context.Context, reservationID uint64, patch booking.Patch) (booking.Occupancy, error)
	RemoveUsers(ctx context.Context, reservationID uint64, userIDs []uint64) (int, error)
	RemoveUser(ctx context.Context, reservationID, userID uint64) (booking.Occupancy, error)
	DeleteReservation(ctx context.Context, reservationID uint64) error
	GetOccupancy(ctx context.Context, fieldID uint64, date string, slot int) (booking.Occupancy, error)
	FieldAvailability(ctx context.Context, fieldID uint64, date string) ([]service.SlotAvailability, error)
}

// ReservationHandler serves reservations and their users.  Reads go to the
// repository directly; every write goes through the Allocator.
type ReservationHandler struct {
	Reservations *repository.ReservationRepo
	Allocator    Allocator
}

// usersReq is the body of POST and PUT on a reservation's users.  The
// plain user_ids form claims one place per user.
type usersReq struct {
	Users   []booking.Allocation `json:"users" validate:"dive"`
	UserIDs []uint64             `json:"user_ids"`
}

func (r usersReq) allocations() []booking.Allocation {
	out := make([]booking.Allocation, 0, len(r.Users)+len(r.UserIDs))
	out = append(out, r.Users...)
	for _, id := range r.UserIDs {
		out = append(out, booking.Allocation{UserID: id, Quantity: 1})
	}
	return out
}

type createReservationReq struct {
	FieldID uint64 `json:"field_id" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Slot    int    `json:"slot"`
	usersReq
}

type patchUsersReq struct {
	AddUsers      []booking.Allocation `json:"add_users" validate:"dive"`
	AddUserIDs    []uint64             `json:"add_user_ids"`
	RemoveUserIDs []uint64             `json:"remove_user_ids"`
}

type removeUsersReq struct {
	UserIDs []uint64 `json:"user_ids" validate:"required,min=1"`
}

type reservationDetail struct {
	model.Reservation
	Users []model.ReservationUser `json:"users"`
}

func occupancyResp(id uint64, occ booking.Occupancy) echo.Map {
	return echo.Map{"reservation_id": id, "occupancy": occ, "plazasDisponibles": occ.Available}
}

func (h *ReservationHandler) List(c echo.Context) error {
	page, limit, offset := pagination(c)
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, total, err := h.Reservations.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "meta": newPageMeta(page, total)})
}

// Get returns a reservation together with its users.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	users, err := h.Reservations.ListUsers(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reservationDetail{Reservation: res, Users: users})
}

func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := h.Allocator.CreateReservation(c.Request().Context(), service.CreateInput{
		FieldID: req.FieldID,
		Date:    req.Date,
		Slot:    req.Slot,
		Users:   req.allocations(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *ReservationHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Allocator.DeleteReservation(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReservationHandler) ListUsers(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if _, err := h.Reservations.GetByID(ctx, id); err != nil {
		return writeError(c, err)
	}
	users, err := h.Reservations.ListUsers(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation_id": id, "users": users})
}

// AddUsers adds places; quantities of users already present accumulate.
func (h *ReservationHandler) AddUsers(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req usersReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	occ, err := h.Allocator.AddUsers(c.Request().Context(), id, req.allocations())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, occupancyResp(id, occ))
}

// ReplaceUsers sets the reservation's users to exactly the given list.
func (h *ReservationHandler) ReplaceUsers(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req usersReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	occ, err := h.Allocator.ReplaceUsers(c.Request().Context(), id, req.allocations())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, occupancyResp(id, occ))
}

func (h *ReservationHandler) PatchUsers(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req patchUsersReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	add := usersReq{Users: req.AddUsers, UserIDs: req.AddUserIDs}.allocations()
	occ, err := h.Allocator.PatchUsers(c.Request().Context(), id, booking.Patch{Add: add, Remove: req.RemoveUserIDs})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, occupancyResp(id, occ))
}

// RemoveUsers deletes the users listed in the body.  Users that are not
// in the reservation are ignored.
func (h *ReservationHandler) RemoveUsers(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req removeUsersReq
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	n, err := h.Allocator.RemoveUsers(c.Request().Context(), id, req.UserIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation_id": id, "removed": n})
}

// RemoveUser deletes one user and answers 404 if they were not part of the
// reservation.
func (h *ReservationHandler) RemoveUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	userID, err := parseID(c, "userId")
	if err != nil {
		return writeError(c, err)
	}
	occ, err := h.Allocator.RemoveUser(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, occupancyResp(id, occ))
}
