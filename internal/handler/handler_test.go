package handler

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-reservation/internal/model"
	"github.com/iliyamo/showtime-reservation/internal/repository"
	"github.com/iliyamo/showtime-reservation/internal/service"
)

// MockBooker is a mock implementation of Booker for testing
type MockBooker struct {
	BookFunc        func(ctx context.Context, userID, showID uint64, seats int) (model.Reservation, error)
	CancelFunc      func(ctx context.Context, userID, reservationID uint64) (model.Reservation, error)
	ListHistoryFunc func(ctx context.Context, userID uint64) iter.Seq2[model.Reservation, error]
	ListAllFunc     func(ctx context.Context) iter.Seq2[model.Reservation, error]
	RemoveMovieFunc func(ctx context.Context, movieID uint64) ([]model.Reservation, error)
	RemoveShowFunc  func(ctx context.Context, showID uint64) ([]model.Reservation, error)
}

func (m *MockBooker) Book(ctx context.Context, userID, showID uint64, seats int) (model.Reservation, error) {
	if m.BookFunc != nil {
		return m.BookFunc(ctx, userID, showID, seats)
	}
	return model.Reservation{}, nil
}

func (m *MockBooker) Cancel(ctx context.Context, userID, reservationID uint64) (model.Reservation, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, userID, reservationID)
	}
	return model.Reservation{}, nil
}

func (m *MockBooker) ListHistory(ctx context.Context, userID uint64) iter.Seq2[model.Reservation, error] {
	if m.ListHistoryFunc != nil {
		return m.ListHistoryFunc(ctx, userID)
	}
	return seqOf()
}

func (m *MockBooker) ListAll(ctx context.Context) iter.Seq2[model.Reservation, error] {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return seqOf()
}

func (m *MockBooker) RemoveMovie(ctx context.Context, movieID uint64) ([]model.Reservation, error) {
	if m.RemoveMovieFunc != nil {
		return m.RemoveMovieFunc(ctx, movieID)
	}
	return nil, nil
}

func (m *MockBooker) RemoveShow(ctx context.Context, showID uint64) ([]model.Reservation, error) {
	if m.RemoveShowFunc != nil {
		return m.RemoveShowFunc(ctx, showID)
	}
	return nil, nil
}

// MockCatalog is a mock implementation of Catalog for testing
type MockCatalog struct {
	CreateMovieFunc   func(ctx context.Context, m model.Movie) (model.Movie, error)
	UpdateMovieFunc   func(ctx context.Context, m model.Movie) (model.Movie, error)
	AddShowFunc       func(ctx context.Context, movieID uint64, in service.NewShow) (model.Show, error)
	MoviesFunc        func(ctx context.Context) ([]model.Movie, error)
	MovieFunc         func(ctx context.Context, id uint64) (model.Movie, error)
	ShowFunc          func(ctx context.Context, id uint64) (model.Show, error)
	UpcomingShowsFunc func(ctx context.Context, movieID uint64) ([]model.Show, error)
	SearchShowsFunc   func(ctx context.Context, q repository.ShowSearchQuery) ([]repository.ShowListing, int64, error)
}

func (m *MockCatalog) CreateMovie(ctx context.Context, mv model.Movie) (model.Movie, error) {
	if m.CreateMovieFunc != nil {
		return m.CreateMovieFunc(ctx, mv)
	}
	return mv, nil
}

func (m *MockCatalog) UpdateMovie(ctx context.Context, mv model.Movie) (model.Movie, error) {
	if m.UpdateMovieFunc != nil {
		return m.UpdateMovieFunc(ctx, mv)
	}
	return mv, nil
}

func (m *MockCatalog) AddShow(ctx context.Context, movieID uint64, in service.NewShow) (model.Show, error) {
	if m.AddShowFunc != nil {
		return m.AddShowFunc(ctx, movieID, in)
	}
	return model.Show{}, nil
}

func (m *MockCatalog) Movies(ctx context.Context) ([]model.Movie, error) {
	if m.MoviesFunc != nil {
		return m.MoviesFunc(ctx)
	}
	return nil, nil
}

func (m *MockCatalog) Movie(ctx context.Context, id uint64) (model.Movie, error) {
	if m.MovieFunc != nil {
		return m.MovieFunc(ctx, id)
	}
	return model.Movie{}, &service.Error{Kind: service.KindNotFound}
}

func (m *MockCatalog) Show(ctx context.Context, id uint64) (model.Show, error) {
	if m.ShowFunc != nil {
		return m.ShowFunc(ctx, id)
	}
	return model.Show{}, &service.Error{Kind: service.KindNotFound}
}

func (m *MockCatalog) UpcomingShows(ctx context.Context, movieID uint64) ([]model.Show, error) {
	if m.UpcomingShowsFunc != nil {
		return m.UpcomingShowsFunc(ctx, movieID)
	}
	return nil, nil
}

func (m *MockCatalog) SearchShows(ctx context.Context, q repository.ShowSearchQuery) ([]repository.ShowListing, int64, error) {
	if m.SearchShowsFunc != nil {
		return m.SearchShowsFunc(ctx, q)
	}
	return nil, 0, nil
}

type mockPurger struct{ calls int }

func (p *mockPurger) Purge(context.Context) error { p.calls++; return nil }

func seqOf(rs ...model.Reservation) iter.Seq2[model.Reservation, error] {
	return func(yield func(model.Reservation, error) bool) {
		for _, r := range rs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// newContext builds an echo context, optionally authenticated as userID.
func newContext(method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user_id", userID)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBookingHandler_Book(t *testing.T) {
	starts := time.Date(2031, 5, 1, 19, 0, 0, 0, time.UTC)
	var gotUser, gotShow uint64
	var gotSeats int
	booker := &MockBooker{
		BookFunc: func(_ context.Context, userID, showID uint64, seats int) (model.Reservation, error) {
			gotUser, gotShow, gotSeats = userID, showID, seats
			return model.Reservation{ID: 31, UserID: userID, ShowID: showID, Seats: seats, Status: model.ReservationActive, TotalAmountCents: 2000}, nil
		},
	}
	catalog := &MockCatalog{
		ShowFunc: func(_ context.Context, id uint64) (model.Show, error) {
			return model.Show{ID: id, MovieID: 2, Screen: 4, StartsAt: starts, AvailableSeats: 18}, nil
		},
		MovieFunc: func(_ context.Context, id uint64) (model.Movie, error) {
			return model.Movie{ID: id, Title: "Heat"}, nil
		},
	}
	h := NewBookingHandler(booker, catalog)

	c, rec := newContext(http.MethodPost, "/v1/reservations", `{"show_id":9,"seats":2}`, 5)
	require.NoError(t, h.Book(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(5), gotUser)
	assert.Equal(t, uint64(9), gotShow)
	assert.Equal(t, 2, gotSeats)

	item := decode(t, rec)["item"].(map[string]any)
	assert.EqualValues(t, 31, item["id"])
	assert.Equal(t, true, item["active"])
	assert.Equal(t, "Heat", item["movie_title"])
	assert.EqualValues(t, 4, item["screen"])
	assert.EqualValues(t, 18, item["seats_left"])
	assert.Equal(t, "2031-05-01T19:00:00Z", item["show_starts_at"])
}

func TestBookingHandler_BookRejects(t *testing.T) {
	h := NewBookingHandler(&MockBooker{}, &MockCatalog{})

	c, rec := newContext(http.MethodPost, "/v1/reservations", `{"show_id":1,"seats":1}`, 0)
	require.NoError(t, h.Book(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodPost, "/v1/reservations", `{"seats":1}`, 5)
	require.NoError(t, h.Book(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodPost, "/v1/reservations", `{"show_id":`, 5)
	require.NoError(t, h.Book(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		kind string
	}{
		{&service.Error{Kind: service.KindNotFound, Message: "show not found"}, http.StatusNotFound, "not_found"},
		{&service.Error{Kind: service.KindForbidden, Message: "not owner"}, http.StatusForbidden, "forbidden"},
		{&service.Error{Kind: service.KindConflict, Message: "duplicate reservation"}, http.StatusConflict, "conflict"},
		{&service.Error{Kind: service.KindInsufficientCapacity, Message: "requested 3 seats, 1 available"}, http.StatusConflict, "insufficient_capacity"},
		{&service.Error{Kind: service.KindInvalidState, Message: "show already started"}, http.StatusUnprocessableEntity, "invalid_state"},
		{&service.Error{Kind: service.KindStorageUnavailable, Message: "service.Book failed", Err: errors.New("dial tcp")}, http.StatusServiceUnavailable, "storage_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			h := NewBookingHandler(&MockBooker{
				BookFunc: func(context.Context, uint64, uint64, int) (model.Reservation, error) { return model.Reservation{}, tt.err },
			}, &MockCatalog{})
			c, rec := newContext(http.MethodPost, "/v1/reservations", `{"show_id":1,"seats":3}`, 5)
			require.NoError(t, h.Book(c))

			assert.Equal(t, tt.code, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.kind, body["error"])
			assert.NotContains(t, body["message"], "dial tcp")
		})
	}
}

func TestBookingHandler_Cancel(t *testing.T) {
	now := time.Now().UTC()
	h := NewBookingHandler(&MockBooker{
		CancelFunc: func(_ context.Context, userID, id uint64) (model.Reservation, error) {
			if userID != 5 {
				return model.Reservation{}, &service.Error{Kind: service.KindForbidden, Message: "not owner"}
			}
			return model.Reservation{ID: id, UserID: userID, Status: model.ReservationCancelled, CancelledAt: &now}, nil
		},
	}, &MockCatalog{})

	c, rec := newContext(http.MethodDelete, "/v1/reservations/12", "", 5)
	c.SetParamNames("id")
	c.SetParamValues("12")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	item := decode(t, rec)["item"].(map[string]any)
	assert.Equal(t, false, item["active"])
	assert.Equal(t, model.ReservationCancelled, item["status"])
	assert.NotContains(t, item, "movie_title", "show details are omitted when the show is gone")

	c, rec = newContext(http.MethodDelete, "/v1/reservations/12", "", 6)
	c.SetParamNames("id")
	c.SetParamValues("12")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newContext(http.MethodDelete, "/v1/reservations/x", "", 5)
	c.SetParamNames("id")
	c.SetParamValues("x")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingHandler_History(t *testing.T) {
	rs := []model.Reservation{{ID: 3, UserID: 5}, {ID: 2, UserID: 5}, {ID: 1, UserID: 5}}
	h := NewBookingHandler(&MockBooker{
		ListHistoryFunc: func(_ context.Context, userID uint64) iter.Seq2[model.Reservation, error] {
			return seqOf(rs...)
		},
	}, &MockCatalog{})

	c, rec := newContext(http.MethodGet, "/v1/my-reservations?limit=2", "", 5)
	require.NoError(t, h.History(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	items := body["items"].([]any)
	assert.EqualValues(t, 3, items[0].(map[string]any)["id"])

	c, rec = newContext(http.MethodGet, "/v1/my-reservations?limit=0", "", 5)
	require.NoError(t, h.History(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingHandler_HistoryDetails(t *testing.T) {
	starts := time.Date(2031, 5, 1, 20, 0, 0, 0, time.UTC)
	showCalls, movieCalls := 0, 0
	h := NewBookingHandler(&MockBooker{
		ListHistoryFunc: func(context.Context, uint64) iter.Seq2[model.Reservation, error] {
			return seqOf(
				model.Reservation{ID: 3, UserID: 5, ShowID: 40},
				model.Reservation{ID: 2, UserID: 5, ShowID: 41},
				model.Reservation{ID: 1, UserID: 5, ShowID: 40},
			)
		},
	}, &MockCatalog{
		ShowFunc: func(_ context.Context, id uint64) (model.Show, error) {
			showCalls++
			if id == 41 {
				return model.Show{}, &service.Error{Kind: service.KindNotFound}
			}
			return model.Show{ID: id, MovieID: 7, Screen: 2, StartsAt: starts, AvailableSeats: 9}, nil
		},
		MovieFunc: func(_ context.Context, id uint64) (model.Movie, error) {
			movieCalls++
			return model.Movie{ID: id, Title: "Heat"}, nil
		},
	})

	c, rec := newContext(http.MethodGet, "/v1/my-reservations", "", 5)
	require.NoError(t, h.History(c))
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 3)

	first := items[0].(map[string]any)
	assert.Equal(t, "Heat", first["movie_title"])
	assert.Equal(t, "2031-05-01T20:00:00Z", first["show_starts_at"])
	assert.EqualValues(t, 2, first["screen"])
	assert.Equal(t, "Heat", items[2].(map[string]any)["movie_title"])
	assert.NotContains(t, items[1].(map[string]any), "movie_title")

	assert.Equal(t, 2, showCalls)
	assert.Equal(t, 1, movieCalls)
}

func TestCollect_StopsOnError(t *testing.T) {
	failing := func(yield func(model.Reservation, error) bool) {
		if !yield(model.Reservation{ID: 1}, nil) {
			return
		}
		yield(model.Reservation{}, errors.New("conn reset"))
	}
	_, err := collect(failing, 10)
	assert.Error(t, err)

	items, err := collect(seqOf(), 10)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestAdminHandler_CatalogWrites(t *testing.T) {
	purger := &mockPurger{}
	var gotShow service.NewShow
	catalog := &MockCatalog{
		CreateMovieFunc: func(_ context.Context, m model.Movie) (model.Movie, error) {
			m.ID = 8
			return m, nil
		},
		AddShowFunc: func(_ context.Context, movieID uint64, in service.NewShow) (model.Show, error) {
			gotShow = in
			return model.Show{ID: 70, MovieID: movieID, TotalSeats: in.TotalSeats, AvailableSeats: in.TotalSeats}, nil
		},
	}
	h := NewAdminHandler(&MockBooker{
		RemoveMovieFunc: func(context.Context, uint64) ([]model.Reservation, error) {
			return make([]model.Reservation, 3), nil
		},
		RemoveShowFunc: func(context.Context, uint64) ([]model.Reservation, error) {
			return nil, &service.Error{Kind: service.KindNotFound, Message: "show not found"}
		},
	}, catalog, purger)

	c, rec := newContext(http.MethodPost, "/v1/admin/movies", `{"title":"Heat","release_date":"1995-12-15"}`, 1)
	require.NoError(t, h.CreateMovie(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1995-12-15T00:00:00Z", decode(t, rec)["item"].(map[string]any)["release_date"])

	c, rec = newContext(http.MethodPost, "/v1/admin/movies", `{"title":"Heat","release_date":"15/12/1995"}`, 1)
	require.NoError(t, h.CreateMovie(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodPost, "/v1/admin/movies/8/shows", `{"screen":2,"starts_at":"2031-01-01T20:00:00+01:00","price_cents":1200,"total_seats":90}`, 1)
	c.SetParamNames("id")
	c.SetParamValues("8")
	require.NoError(t, h.AddShow(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 90, gotShow.TotalSeats)
	assert.True(t, gotShow.StartsAt.Equal(time.Date(2031, 1, 1, 19, 0, 0, 0, time.UTC)))

	c, rec = newContext(http.MethodPost, "/v1/admin/movies/8/shows", `{"starts_at":"tomorrow","total_seats":90}`, 1)
	c.SetParamNames("id")
	c.SetParamValues("8")
	require.NoError(t, h.AddShow(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodDelete, "/v1/admin/movies/8", "", 1)
	c.SetParamNames("id")
	c.SetParamValues("8")
	require.NoError(t, h.DeleteMovie(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["cancelled_reservations"])

	c, rec = newContext(http.MethodDelete, "/v1/admin/shows/70", "", 1)
	c.SetParamNames("id")
	c.SetParamValues("70")
	require.NoError(t, h.DeleteShow(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 3, purger.calls, "only successful writes purge the cache")
}

func TestAdminHandler_UpdateMovie(t *testing.T) {
	purger := &mockPurger{}
	var got model.Movie
	h := NewAdminHandler(&MockBooker{}, &MockCatalog{
		UpdateMovieFunc: func(_ context.Context, m model.Movie) (model.Movie, error) {
			if m.ID == 9 {
				return model.Movie{}, &service.Error{Kind: service.KindNotFound, Message: "movie not found"}
			}
			got = m
			return m, nil
		},
	}, purger)

	put := func(id, body string) *httptest.ResponseRecorder {
		c, rec := newContext(http.MethodPut, "/v1/admin/movies/"+id, body, 1)
		c.SetParamNames("id")
		c.SetParamValues(id)
		require.NoError(t, h.UpdateMovie(c))
		return rec
	}

	rec := put("8", `{"title":"Heat","genre":"Crime","duration_minutes":170,"release_date":"1995-12-15"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(8), got.ID)
	assert.Equal(t, uint32(170), got.DurationMinutes)
	require.NotNil(t, got.ReleaseDate)
	assert.Equal(t, "Heat", decode(t, rec)["item"].(map[string]any)["title"])

	assert.Equal(t, http.StatusNotFound, put("9", `{"title":"Heat"}`).Code)
	assert.Equal(t, http.StatusBadRequest, put("8", `{"title":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, put("x", `{"title":"Heat"}`).Code)
	assert.Equal(t, 1, purger.calls)
}

func TestPublicHandler_Movie(t *testing.T) {
	h := NewPublicHandler(&MockCatalog{
		MovieFunc: func(_ context.Context, id uint64) (model.Movie, error) {
			if id != 4 {
				return model.Movie{}, &service.Error{Kind: service.KindNotFound, Message: "movie not found"}
			}
			return model.Movie{ID: 4, Title: "Alien"}, nil
		},
	})

	get := func(id string) *httptest.ResponseRecorder {
		c, rec := newContext(http.MethodGet, "/v1/movies/"+id, "", 0)
		c.SetParamNames("id")
		c.SetParamValues(id)
		require.NoError(t, h.Movie(c))
		return rec
	}

	rec := get("4")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alien", decode(t, rec)["item"].(map[string]any)["title"])
	assert.Equal(t, http.StatusNotFound, get("5").Code)
	assert.Equal(t, http.StatusBadRequest, get("0").Code)
}

func TestPublicHandler_SearchShows(t *testing.T) {
	var got repository.ShowSearchQuery
	h := NewPublicHandler(&MockCatalog{
		SearchShowsFunc: func(_ context.Context, q repository.ShowSearchQuery) ([]repository.ShowListing, int64, error) {
			got = q
			return []repository.ShowListing{{ShowID: 1, Title: "Heat"}}, 41, nil
		},
	})

	c, rec := newContext(http.MethodGet, "/v1/shows/search?title=heat&genre=crime&bookable=true&page=3&page_size=10&from=2031-01-01T00:00:00Z", "", 0)
	require.NoError(t, h.SearchShows(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "heat", got.Title)
	assert.Equal(t, "crime", got.Genre)
	assert.True(t, got.OnlyBookable)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, 10, got.PageSize)
	assert.Equal(t, time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC), got.From)

	body := decode(t, rec)
	assert.EqualValues(t, 41, body["total"])
	assert.EqualValues(t, 3, body["page"])

	for _, q := range []string{"page=0", "page_size=x", "to=yesterday"} {
		c, rec = newContext(http.MethodGet, "/v1/shows/search?"+q, "", 0)
		require.NoError(t, h.SearchShows(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestPublicHandler_Browse(t *testing.T) {
	h := NewPublicHandler(&MockCatalog{
		UpcomingShowsFunc: func(_ context.Context, movieID uint64) ([]model.Show, error) {
			return nil, &service.Error{Kind: service.KindNotFound, Message: "movie not found"}
		},
	})

	c, rec := newContext(http.MethodGet, "/v1/movies", "", 0)
	require.NoError(t, h.Movies(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"count":0}`, rec.Body.String())

	c, rec = newContext(http.MethodGet, "/v1/movies/4/shows", "", 0)
	c.SetParamNames("id")
	c.SetParamValues("4")
	require.NoError(t, h.UpcomingShows(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newContext(http.MethodGet, "/v1/shows/0", "", 0)
	c.SetParamNames("id")
	c.SetParamValues("0")
	require.NoError(t, h.Show(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/readyz", "", 0)
	require.NoError(t, Ready(nil)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodGet, "/readyz", "", 0)
	require.NoError(t, Ready(pingerFunc(func(context.Context) error { return errors.New("down") }))(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
