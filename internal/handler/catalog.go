package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-reservation/internal/model"
	"github.com/iliyamo/showtime-reservation/internal/repository"
	"github.com/iliyamo/showtime-reservation/internal/service"
)

// Catalog is the catalog service as used by the handlers.
type Catalog interface {
	CreateMovie(ctx context.Context, m model.Movie) (model.Movie, error)
	UpdateMovie(ctx context.Context, m model.Movie) (model.Movie, error)
	AddShow(ctx context.Context, movieID uint64, in service.NewShow) (model.Show, error)
	Movies(ctx context.Context) ([]model.Movie, error)
	Movie(ctx context.Context, id uint64) (model.Movie, error)
	Show(ctx context.Context, id uint64) (model.Show, error)
	UpcomingShows(ctx context.Context, movieID uint64) ([]model.Show, error)
	SearchShows(ctx context.Context, q repository.ShowSearchQuery) ([]repository.ShowListing, int64, error)
}

// PublicHandler serves unauthenticated browse routes.
type PublicHandler struct {
	catalog Catalog
}

func NewPublicHandler(catalog Catalog) *PublicHandler {
	if catalog == nil {
		panic("nil catalog passed to NewPublicHandler")
	}
	return &PublicHandler{catalog: catalog}
}

// Movies handles GET /v1/movies.
func (h *PublicHandler) Movies(c echo.Context) error {
	movies, err := h.catalog.Movies(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	if movies == nil {
		movies = []model.Movie{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": movies, "count": len(movies)})
}

// Movie handles GET /v1/movies/:id.
func (h *PublicHandler) Movie(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	movie, err := h.catalog.Movie(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": movie})
}

// UpcomingShows handles GET /v1/movies/:id/shows.
func (h *PublicHandler) UpcomingShows(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	shows, err := h.catalog.UpcomingShows(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if shows == nil {
		shows = []model.Show{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": shows, "count": len(shows)})
}

// Show handles GET /v1/shows/:id and reports current availability.
func (h *PublicHandler) Show(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	show, err := h.catalog.Show(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": show})
}

// SearchShows handles GET /v1/shows/search.
//
// Query params: title, genre, from, to (RFC3339), bookable=true,
// page, page_size.
func (h *PublicHandler) SearchShows(c echo.Context) error {
	q := repository.ShowSearchQuery{
		Title:        strings.TrimSpace(c.QueryParam("title")),
		Genre:        strings.TrimSpace(c.QueryParam("genre")),
		OnlyBookable: c.QueryParam("bookable") == "true",
	}
	for name, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		if raw := c.QueryParam(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return badRequest(c, name+" must be RFC3339")
			}
			*dst = t.UTC()
		}
	}
	for name, dst := range map[string]*int{"page": &q.Page, "page_size": &q.PageSize} {
		if raw := c.QueryParam(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return badRequest(c, name+" must be a positive integer")
			}
			*dst = n
		}
	}
	q = q.Normalize()

	items, total, err := h.catalog.SearchShows(c.Request().Context(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     items,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}
