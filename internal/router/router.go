package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-reservation/internal/handler"
)

// RegisterRoutes registers the operational endpoints: liveness,
// readiness and, when metrics is non-nil, the Prometheus scrape path.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterPublic registers unauthenticated browse endpoints. Movie and
// show listings go through the response cache and are purged on catalog
// changes; their available_seats may lag bookings by up to the cache TTL.
// The show detail carries live availability and is never cached.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	cached := e.Group("/v1", cache)
	cached.GET("/movies", p.Movies)
	cached.GET("/movies/:id", p.Movie)
	cached.GET("/movies/:id/shows", p.UpcomingShows)
	cached.GET("/shows/search", p.SearchShows)

	e.GET("/v1/shows/:id", p.Show)
}
