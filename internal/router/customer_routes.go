package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-reservation/internal/handler"
	"github.com/iliyamo/showtime-reservation/internal/middleware"
)

// RegisterCustomer registers the reservation endpoints under /v1. All
// routes require a valid JWT with the CUSTOMER or ADMIN role and pass
// through the rate limiter.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin),
		limiter,
	)
	g.POST("/reservations", h.Book)
	g.DELETE("/reservations/:id", h.Cancel)
	g.GET("/my-reservations", h.History)
}
