package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-reservation/internal/handler"
	"github.com/iliyamo/showtime-reservation/internal/middleware"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)

	// ---- Reservations ----
	g.GET("/reservations", a.Reservations)

	// ---- Catalog ----
	g.POST("/movies", a.CreateMovie)
	g.PUT("/movies/:id", a.UpdateMovie)
	g.POST("/movies/:id/shows", a.AddShow)
	g.DELETE("/movies/:id", a.DeleteMovie)
	g.DELETE("/shows/:id", a.DeleteShow)
}
