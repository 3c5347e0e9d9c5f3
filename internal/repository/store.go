package repository

import (
	"context"
	"iter"
	"time"

	"github.com/iliyamo/showtime-reservation/internal/model"
)

// Store is the inventory store and reservation ledger. Reads outside of
// Atomic see committed state only.
type Store interface {
	// Atomic runs fn in a single transaction. If fn returns an error,
	// nothing it wrote becomes visible; otherwise all of it does.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	Reservation(ctx context.Context, id uint64) (model.Reservation, error)
	// ReservationsByUser and AllReservations yield newest first. Each
	// range over the returned sequence queries the store again.
	ReservationsByUser(ctx context.Context, userID uint64) iter.Seq2[model.Reservation, error]
	AllReservations(ctx context.Context) iter.Seq2[model.Reservation, error]

	CreateMovie(ctx context.Context, m *model.Movie) error
	Movie(ctx context.Context, id uint64) (model.Movie, error)
	Movies(ctx context.Context) ([]model.Movie, error)
	Show(ctx context.Context, id uint64) (model.Show, error)
	ShowIDsByMovie(ctx context.Context, movieID uint64) ([]uint64, error)
	UpcomingShows(ctx context.Context, movieID uint64, after time.Time) ([]model.Show, error)
	SearchShows(ctx context.Context, q ShowSearchQuery) ([]ShowListing, int64, error)
}

// Tx is the transactional view handed to Atomic callbacks. The
// ForUpdate reads lock the row until the transaction ends where the
// backend supports it.
type Tx interface {
	ShowForUpdate(ctx context.Context, id uint64) (model.Show, error)
	MovieForUpdate(ctx context.Context, id uint64) (model.Movie, error)
	ReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
	// ActiveReservation returns ErrReservationNotFound when the user holds
	// no ACTIVE reservation for the show.
	ActiveReservation(ctx context.Context, userID, showID uint64) (model.Reservation, error)
	ActiveReservationsByShow(ctx context.Context, showID uint64) ([]model.Reservation, error)

	CreateShow(ctx context.Context, s *model.Show) error
	CreateReservation(ctx context.Context, r *model.Reservation) error
	CancelReservation(ctx context.Context, id uint64, at time.Time) error
	// AddAvailableSeats adjusts a show's available seats by delta and
	// fails with ErrCapacityViolation if the result leaves 0..total.
	AddAvailableSeats(ctx context.Context, showID uint64, delta int) error

	// DeleteShow removes a show and every reservation that references it.
	DeleteShow(ctx context.Context, showID uint64) error
	DeleteMovie(ctx context.Context, movieID uint64) error
	// UpdateMovie replaces the descriptive fields of m.ID. CreatedAt is
	// kept and written back to m.
	UpdateMovie(ctx context.Context, m *model.Movie) error
}
