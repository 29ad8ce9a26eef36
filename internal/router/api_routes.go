package router

import (
	"github.com/labstack/echo/v4"

	"github.com/pitchdreamers/pitch-booking/internal/handler"
	"github.com/pitchdreamers/pitch-booking/internal/middleware"
	"github.com/pitchdreamers/pitch-booking/internal/model"
)

// Handlers groups the API handlers registered by RegisterAPI.
type Handlers struct {
	Fields       *handler.FieldHandler
	Users        *handler.UserHandler
	Reservations *handler.ReservationHandler
	Payments     *handler.PaymentHandler
}

// RegisterAPI registers the /api resources.  The field catalogue is public
// and may be served from the response cache; occupancy and availability
// are public but always computed live.
func RegisterAPI(e *echo.Echo, h Handlers, auth, cache echo.MiddlewareFunc) {
	api := e.Group("/api")

	api.GET("/fields", h.Fields.List, cache)
	api.GET("/fields/:id", h.Fields.Get, cache)
	api.GET("/fields/:id/availability", h.Fields.Availability)
	api.GET("/fields/:id/occupancy", h.Fields.Occupancy)
	api.PATCH("/fields/:id", h.Fields.Update, auth, middleware.RequireRole(model.RoleAdmin))

	users := api.Group("/users", auth)
	users.GET("", h.Users.List)
	users.GET("/:id", h.Users.Get)
	users.PATCH("/:id", h.Users.Update)

	res := api.Group("/reservations", auth)
	res.GET("", h.Reservations.List)
	res.POST("", h.Reservations.Create)
	res.GET("/:id", h.Reservations.Get)
	res.DELETE("/:id", h.Reservations.Delete)
	res.GET("/:id/users", h.Reservations.ListUsers)
	res.POST("/:id/users", h.Reservations.AddUsers)
	res.PUT("/:id/users", h.Reservations.ReplaceUsers)
	res.PATCH("/:id/users", h.Reservations.PatchUsers)
	res.DELETE("/:id/users", h.Reservations.RemoveUsers)
	res.DELETE("/:id/users/:userId", h.Reservations.RemoveUser)

	api.GET("/payments", h.Payments.List, auth)
}
