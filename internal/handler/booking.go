package handler

import (
	"context"
	"iter"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-reservation/internal/middleware"
	"github.com/iliyamo/showtime-reservation/internal/model"
)

// Booker is the part of the reservation engine used over HTTP.
type Booker interface {
	Book(ctx context.Context, userID, showID uint64, seats int) (model.Reservation, error)
	Cancel(ctx context.Context, userID, reservationID uint64) (model.Reservation, error)
	ListHistory(ctx context.Context, userID uint64) iter.Seq2[model.Reservation, error]
	ListAll(ctx context.Context) iter.Seq2[model.Reservation, error]
	RemoveMovie(ctx context.Context, movieID uint64) ([]model.Reservation, error)
	RemoveShow(ctx context.Context, showID uint64) ([]model.Reservation, error)
}

// BookingHandler serves the customer reservation routes. The requester
// identity comes from the JWT and is passed explicitly to the engine.
type BookingHandler struct {
	engine  Booker
	catalog Catalog
}

func NewBookingHandler(engine Booker, catalog Catalog) *BookingHandler {
	if engine == nil || catalog == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{engine: engine, catalog: catalog}
}

type bookRequest struct {
	ShowID uint64 `json:"show_id"`
	Seats  int    `json:"seats"`
}

// Book handles POST /v1/reservations with {"show_id": 1, "seats": 2}.
// It returns 201 with the new reservation.
func (h *BookingHandler) Book(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ShowID == 0 {
		return badRequest(c, "show_id is required")
	}

	res, err := h.engine.Book(c.Request().Context(), userID, req.ShowID, req.Seats)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": h.detailed(c.Request().Context(), res)})
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}

	res, err := h.engine.Cancel(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": h.detailed(c.Request().Context(), res)})
}

// History handles GET /v1/my-reservations?limit=N, newest first.
func (h *BookingHandler) History(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, ok := listLimit(c)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	ctx := c.Request().Context()
	items, err := collect(h.engine.ListHistory(ctx, userID), limit)
	if err != nil {
		return writeError(c, err)
	}
	h.enrich(ctx, items)
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// detailed adds show and movie details to a single reservation.
func (h *BookingHandler) detailed(ctx context.Context, r model.Reservation) reservationView {
	views := []reservationView{newReservationView(r)}
	h.enrich(ctx, views)
	return views[0]
}

// enrich fills in show and movie details, looking each show and movie up
// once. Lookup failures leave the details out: the reservations
// themselves are already committed.
func (h *BookingHandler) enrich(ctx context.Context, views []reservationView) {
	shows := make(map[uint64]*model.Show)
	movies := make(map[uint64]*model.Movie)
	for i := range views {
		id := views[i].ShowID
		show, seen := shows[id]
		if !seen {
			if s, err := h.catalog.Show(ctx, id); err == nil {
				show = &s
			}
			shows[id] = show
		}
		if show == nil {
			continue
		}
		movie, seen := movies[show.MovieID]
		if !seen {
			if m, err := h.catalog.Movie(ctx, show.MovieID); err == nil {
				movie = &m
			}
			movies[show.MovieID] = movie
		}
		views[i].withShow(*show, movie)
	}
}
