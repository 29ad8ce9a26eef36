package router

import (
	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/handler"
)

// RegisterAuth registers the session endpoints.  Register, login and
// refresh are open; logout and /api/me need a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, auth)

	e.GET("/api/me", a.Me, auth)
}
