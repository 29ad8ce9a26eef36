package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/booking"
	"github.com/pitchdreamers/pitch-booking/internal/middleware"
	"github.com/pitchdreamers/pitch-booking/internal/model"
	"github.com/pitchdreamers/pitch-booking/internal/repository"
	"github.com/pitchdreamers/pitch-booking/internal/utils"
)

type UserHandler struct {
	Users      *repository.UserRepo
	BcryptCost int
}

type updateUserReq struct {
	Name     model.Optional[string] `json:"name"`
	Email    model.Optional[string] `json:"email"`
	Password model.Optional[string] `json:"password"`
}

func (h *UserHandler) List(c echo.Context) error {
	page, limit, offset := pagination(c)
	ctx, cancel := dbCtx(c)
	defer cancel()

	users, total, err := h.Users.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users, "meta": newPageMeta(page, total)})
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Update lets a user edit their own profile, and an admin edit anyone's.
// Changing the email re-derives the role from it.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	caller, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if caller != id && middleware.Role(c) != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	patch := model.UserPatch{Name: req.Name}
	if req.Name.Set && strings.TrimSpace(req.Name.Value) == "" {
		return writeError(c, booking.Validation("name cannot be empty"))
	}
	if req.Email.Set {
		email := repository.NormalizeEmail(req.Email.Value)
		if !strings.Contains(email, "@") {
			return writeError(c, booking.Validation("email is invalid"))
		}
		patch.Email = model.Some(email)
		patch.Role = model.Some(model.RoleForEmail(email))
	}
	if req.Password.Set {
		if len(req.Password.Value) < 6 {
			return writeError(c, booking.Validation("password must be at least 6 characters"))
		}
		hash, err := utils.HashPassword(req.Password.Value, h.BcryptCost)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
		}
		patch.PasswordHash = model.Some(hash)
	}
	if patch.Empty() {
		return writeError(c, booking.Validation("no updatable fields supplied"))
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Users.Update(ctx, id, patch); err != nil {
		return writeError(c, err)
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
