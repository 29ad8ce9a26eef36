package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// UserID returns the authenticated user's id, if any.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ContextUserID).(uint64)
	return id, ok && id > 0
}

// Role returns the authenticated user's role, or "" for anonymous requests.
func Role(c echo.Context) string {
	role, _ := c.Get(ContextRole).(string)
	return role
}

// Claims returns the verified access token claims stored by JWTAuth.
func Claims(c echo.Context) (utils.Claims, bool) {
	cl, ok := c.Get(ContextClaims).(utils.Claims)
	return cl, ok
}

// identity is the caller as used in rate-limit keys: the user id when
// authenticated, "guest" otherwise.
func identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
