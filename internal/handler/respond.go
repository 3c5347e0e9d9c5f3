package handler

import (
	"errors"
	"iter"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-reservation/internal/model"
	"github.com/iliyamo/showtime-reservation/internal/service"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// statusFor maps an engine failure kind to an HTTP status.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict, service.KindInsufficientCapacity:
		return http.StatusConflict
	case service.KindInvalidState:
		return http.StatusUnprocessableEntity
	case service.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": kind, "message": msg}. Storage
// failures get a generic message; their cause is logged by the engine.
func writeError(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
	}
	msg := se.Message
	if se.Kind == service.KindStorageUnavailable {
		msg = "service temporarily unavailable, retry later"
	}
	return c.JSON(statusFor(se.Kind), echo.Map{"error": string(se.Kind), "message": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}

// parseID reads a positive uint64 path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// listLimit reads ?limit=, defaulting to 100 and capped at 500.
func listLimit(c echo.Context) (int, bool) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, maxListLimit), true
}

// collect pulls at most limit reservations from a lazy sequence.
func collect(seq iter.Seq2[model.Reservation, error], limit int) ([]reservationView, error) {
	items := make([]reservationView, 0)
	for r, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, newReservationView(r))
		if len(items) == limit {
			break
		}
	}
	return items, nil
}
