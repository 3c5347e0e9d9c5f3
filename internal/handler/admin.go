package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-reservation/internal/model"
	"github.com/iliyamo/showtime-reservation/internal/service"
)

// Purger invalidates cached catalog responses.
type Purger interface {
	Purge(ctx context.Context) error
}

// AdminHandler serves the ADMIN routes: the full reservation ledger and
// catalog maintenance.
type AdminHandler struct {
	engine  Booker
	catalog Catalog
	cache   Purger
}

// NewAdminHandler wires the handler. cache may be nil.
func NewAdminHandler(engine Booker, catalog Catalog, cache Purger) *AdminHandler {
	if engine == nil || catalog == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{engine: engine, catalog: catalog, cache: cache}
}

// Reservations handles GET /v1/admin/reservations?limit=N.
func (h *AdminHandler) Reservations(c echo.Context) error {
	limit, ok := listLimit(c)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	items, err := collect(h.engine.ListAll(c.Request().Context()), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

type movieRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Genre           string `json:"genre"`
	Director        string `json:"director"`
	DurationMinutes uint32 `json:"duration_minutes"`
	ReleaseDate     string `json:"release_date"` // YYYY-MM-DD
	PosterURL       string `json:"poster_url"`
}

// bindMovie reads a movieRequest body. On failure it returns the
// bad-request message.
func bindMovie(c echo.Context) (model.Movie, string) {
	var req movieRequest
	if err := c.Bind(&req); err != nil {
		return model.Movie{}, "invalid request body"
	}
	if strings.TrimSpace(req.Title) == "" {
		return model.Movie{}, "title is required"
	}
	m := model.Movie{
		Title:           req.Title,
		Description:     req.Description,
		Genre:           req.Genre,
		Director:        req.Director,
		DurationMinutes: req.DurationMinutes,
		PosterURL:       req.PosterURL,
	}
	if req.ReleaseDate != "" {
		d, err := time.Parse(time.DateOnly, req.ReleaseDate)
		if err != nil {
			return model.Movie{}, "release_date must be YYYY-MM-DD"
		}
		m.ReleaseDate = &d
	}
	return m, ""
}

// CreateMovie handles POST /v1/admin/movies.
func (h *AdminHandler) CreateMovie(c echo.Context) error {
	m, msg := bindMovie(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	created, err := h.catalog.CreateMovie(c.Request().Context(), m)
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, echo.Map{"item": created})
}

// UpdateMovie handles PUT /v1/admin/movies/:id. The body replaces every
// descriptive field; omitted fields are cleared.
func (h *AdminHandler) UpdateMovie(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	m, msg := bindMovie(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	m.ID = id
	updated, err := h.catalog.UpdateMovie(c.Request().Context(), m)
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, echo.Map{"item": updated})
}

type showRequest struct {
	Screen     uint32 `json:"screen"`
	StartsAt   string `json:"starts_at"` // RFC 3339
	PriceCents uint32 `json:"price_cents"`
	TotalSeats int    `json:"total_seats"`
}

// AddShow handles POST /v1/admin/movies/:id/shows.
func (h *AdminHandler) AddShow(c echo.Context) error {
	movieID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	var req showRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return badRequest(c, "starts_at must be an RFC 3339 timestamp")
	}
	if req.TotalSeats < 1 {
		return badRequest(c, "total_seats must be at least 1")
	}

	show, err := h.catalog.AddShow(c.Request().Context(), movieID, service.NewShow{
		Screen:     req.Screen,
		StartsAt:   startsAt,
		PriceCents: req.PriceCents,
		TotalSeats: req.TotalSeats,
	})
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, echo.Map{"item": show})
}

// DeleteMovie handles DELETE /v1/admin/movies/:id. Every show of the
// movie is removed and its active reservations are cancelled.
func (h *AdminHandler) DeleteMovie(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	cancelled, err := h.engine.RemoveMovie(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, echo.Map{"cancelled_reservations": len(cancelled)})
}

// DeleteShow handles DELETE /v1/admin/shows/:id.
func (h *AdminHandler) DeleteShow(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	cancelled, err := h.engine.RemoveShow(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, echo.Map{"cancelled_reservations": len(cancelled)})
}

func (h *AdminHandler) purge(c echo.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Purge(c.Request().Context()); err != nil {
		c.Logger().Warnf("cache purge failed: %v", err)
	}
}
