// Package service holds the reservation engine: the only code that
// moves seats between a show's inventory and the reservation ledger.
package service

import (
	"context"
	"errors"
	"iter"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-reservation/internal/lock"
	"github.com/iliyamo/showtime-reservation/internal/logger"
	"github.com/iliyamo/showtime-reservation/internal/metrics"
	"github.com/iliyamo/showtime-reservation/internal/model"
	"github.com/iliyamo/showtime-reservation/internal/repository"
)

// BookingEngine decides bookings and cancellations. Every mutation of a
// show runs while holding that show's lock and inside one store
// transaction, so concurrent callers observe a single total order per
// show and the inventory always equals capacity minus active seats.
type BookingEngine struct {
	store    repository.Store
	locker   lock.Locker
	log      *logger.Logger
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time

	lockTimeout time.Duration
}

// Option configures a BookingEngine.
type Option func(*BookingEngine)

// WithClock replaces the wall clock used for start-time checks and
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *BookingEngine) { e.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(e *BookingEngine) { e.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *BookingEngine) { e.metrics = m }
}

// WithLockTimeout bounds how long an operation waits for a lock. Zero
// means the caller's context alone decides.
func WithLockTimeout(d time.Duration) Option {
	return func(e *BookingEngine) { e.lockTimeout = d }
}

// WithNotifier registers a receiver for committed changes.
func WithNotifier(n Notifier) Option {
	return func(e *BookingEngine) { e.notifier = n }
}

func NewBookingEngine(store repository.Store, locker lock.Locker, opts ...Option) *BookingEngine {
	if store == nil || locker == nil {
		panic("service: nil dependency passed to NewBookingEngine")
	}
	e := &BookingEngine{
		store:  store,
		locker: locker,
		log:    logger.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Book reserves seats for userID on showID. Checks run in a fixed order
// on one consistent view of the show: existence, start time, duplicate
// active reservation, then capacity.
func (e *BookingEngine) Book(ctx context.Context, userID, showID uint64, seats int) (model.Reservation, error) {
	const op = "service.Book"
	var (
		res  model.Reservation
		show model.Show
	)
	err := e.withShowLocks(ctx, []uint64{showID}, func() error {
		return e.store.Atomic(ctx, func(tx repository.Tx) error {
			s, err := tx.ShowForUpdate(ctx, showID)
			if err != nil {
				if errors.Is(err, repository.ErrShowNotFound) {
					return notFound("show not found")
				}
				return err
			}
			now := e.now()
			if s.StartedAt(now) {
				return invalidState("show already started")
			}
			if _, err := tx.ActiveReservation(ctx, userID, showID); err == nil {
				return conflict("duplicate reservation")
			} else if !errors.Is(err, repository.ErrReservationNotFound) {
				return err
			}
			if seats < 1 || seats > s.AvailableSeats {
				return insufficientCapacity(seats, s.AvailableSeats)
			}

			if err := tx.AddAvailableSeats(ctx, showID, -seats); err != nil {
				if errors.Is(err, repository.ErrCapacityViolation) {
					return insufficientCapacity(seats, s.AvailableSeats)
				}
				return err
			}
			r := model.Reservation{
				UserID:           userID,
				ShowID:           showID,
				Seats:            seats,
				Status:           model.ReservationActive,
				TotalAmountCents: uint64(seats) * uint64(s.PriceCents),
				CreatedAt:        now,
			}
			if err := tx.CreateReservation(ctx, &r); err != nil {
				return err
			}
			s.AvailableSeats -= seats
			res, show = r, s
			return nil
		})
	})
	if err = e.finish(op, "book", err); err != nil {
		return model.Reservation{}, err
	}

	e.metrics.SeatsBooked(res.Seats)
	e.log.Info("reservation booked",
		zap.String("op", op),
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("user_id", userID),
		zap.Uint64("show_id", showID),
		zap.Int("seats", seats),
		zap.Int("available", show.AvailableSeats),
	)
	e.notify(ctx, EventBooked, res, show)
	return res, nil
}

// Cancel releases an active reservation owned by userID and credits its
// seats back to the show. A reservation can be cancelled once; a second
// attempt fails with InvalidState and changes nothing.
func (e *BookingEngine) Cancel(ctx context.Context, userID, reservationID uint64) (model.Reservation, error) {
	const op = "service.Cancel"

	// The show id decides which lock to take; everything is re-checked
	// under the lock.
	pre, err := e.store.Reservation(ctx, reservationID)
	if err == nil {
		err = checkCancellable(pre, userID)
	} else if errors.Is(err, repository.ErrReservationNotFound) {
		err = notFound("reservation not found")
	}
	if err != nil {
		return model.Reservation{}, e.finish(op, "cancel", err)
	}

	var (
		res  model.Reservation
		show model.Show
	)
	err = e.withShowLocks(ctx, []uint64{pre.ShowID}, func() error {
		return e.store.Atomic(ctx, func(tx repository.Tx) error {
			s, err := tx.ShowForUpdate(ctx, pre.ShowID)
			if err != nil {
				if errors.Is(err, repository.ErrShowNotFound) {
					return notFound("reservation not found")
				}
				return err
			}
			r, err := tx.ReservationForUpdate(ctx, reservationID)
			if err != nil {
				if errors.Is(err, repository.ErrReservationNotFound) {
					return notFound("reservation not found")
				}
				return err
			}
			if err := checkCancellable(r, userID); err != nil {
				return err
			}

			now := e.now()
			if err := tx.CancelReservation(ctx, r.ID, now); err != nil {
				if errors.Is(err, repository.ErrReservationNotFound) {
					return invalidState("reservation is not active")
				}
				return err
			}
			if err := tx.AddAvailableSeats(ctx, r.ShowID, r.Seats); err != nil {
				return err
			}
			r.Status = model.ReservationCancelled
			r.CancelledAt = &now
			s.AvailableSeats += r.Seats
			res, show = r, s
			return nil
		})
	})
	if err = e.finish(op, "cancel", err); err != nil {
		return model.Reservation{}, err
	}

	e.metrics.SeatsReleased(res.Seats)
	e.log.Info("reservation cancelled",
		zap.String("op", op),
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("user_id", userID),
		zap.Uint64("show_id", res.ShowID),
		zap.Int("seats", res.Seats),
		zap.Int("available", show.AvailableSeats),
	)
	e.notify(ctx, EventCancelled, res, show)
	return res, nil
}

func checkCancellable(r model.Reservation, userID uint64) error {
	if r.UserID != userID {
		return forbidden("not owner")
	}
	if !r.Active() {
		return invalidState("reservation is not active")
	}
	return nil
}

// ListHistory yields the user's reservations, newest first. The
// sequence is lazy and may be ranged over again to re-query.
func (e *BookingEngine) ListHistory(ctx context.Context, userID uint64) iter.Seq2[model.Reservation, error] {
	return e.listing("service.ListHistory", e.store.ReservationsByUser(ctx, userID))
}

// ListAll yields every reservation, newest first.
func (e *BookingEngine) ListAll(ctx context.Context) iter.Seq2[model.Reservation, error] {
	return e.listing("service.ListAll", e.store.AllReservations(ctx))
}

func (e *BookingEngine) listing(op string, seq iter.Seq2[model.Reservation, error]) iter.Seq2[model.Reservation, error] {
	return func(yield func(model.Reservation, error) bool) {
		for r, err := range seq {
			if err != nil {
				e.log.Error("listing failed", zap.String("op", op), zap.Error(err))
				yield(model.Reservation{}, unavailable(op, err))
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// RemoveShow handles a show leaving the catalog. Its active reservations
// are cancelled and their seats credited, then the show and all of its
// reservations are deleted, in one transaction. The reservations that
// were active are returned in their cancelled form.
func (e *BookingEngine) RemoveShow(ctx context.Context, showID uint64) ([]model.Reservation, error) {
	const op = "service.RemoveShow"
	var (
		cancelled []model.Reservation
		show      model.Show
	)
	err := e.withShowLocks(ctx, []uint64{showID}, func() error {
		return e.store.Atomic(ctx, func(tx repository.Tx) error {
			s, rs, err := e.cascadeShow(ctx, tx, showID)
			if errors.Is(err, repository.ErrShowNotFound) {
				return notFound("show not found")
			}
			if err != nil {
				return err
			}
			show, cancelled = s, rs
			return nil
		})
	})
	if err = e.finish(op, "remove_show", err); err != nil {
		return nil, err
	}

	e.log.Info("show removed",
		zap.String("op", op),
		zap.Uint64("show_id", showID),
		zap.Int("cancelled", len(cancelled)),
	)
	e.releaseAll(ctx, cancelled, map[uint64]model.Show{show.ID: show})
	return cancelled, nil
}

// RemoveMovie removes a movie together with every show of it. Show locks
// are taken in ascending id order after the movie lock, which keeps the
// multi-lock path free of deadlocks against single-show operations.
func (e *BookingEngine) RemoveMovie(ctx context.Context, movieID uint64) ([]model.Reservation, error) {
	const op = "service.RemoveMovie"

	releaseMovie, err := e.acquire(ctx, lock.MovieKey(movieID))
	if err != nil {
		return nil, e.finish(op, "remove_movie", err)
	}
	defer releaseMovie()

	if _, err := e.store.Movie(ctx, movieID); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			err = notFound("movie not found")
		}
		return nil, e.finish(op, "remove_movie", err)
	}
	showIDs, err := e.store.ShowIDsByMovie(ctx, movieID)
	if err != nil {
		return nil, e.finish(op, "remove_movie", err)
	}

	var cancelled []model.Reservation
	shows := make(map[uint64]model.Show, len(showIDs))
	err = e.withShowLocks(ctx, showIDs, func() error {
		return e.store.Atomic(ctx, func(tx repository.Tx) error {
			if _, err := tx.MovieForUpdate(ctx, movieID); err != nil {
				if errors.Is(err, repository.ErrMovieNotFound) {
					return notFound("movie not found")
				}
				return err
			}
			var all []model.Reservation
			for _, id := range showIDs {
				s, rs, err := e.cascadeShow(ctx, tx, id)
				if errors.Is(err, repository.ErrShowNotFound) {
					// Removed on its own between listing and locking.
					continue
				}
				if err != nil {
					return err
				}
				shows[id] = s
				all = append(all, rs...)
			}
			if err := tx.DeleteMovie(ctx, movieID); err != nil {
				return err
			}
			cancelled = all
			return nil
		})
	})
	if err = e.finish(op, "remove_movie", err); err != nil {
		return nil, err
	}

	e.log.Info("movie removed",
		zap.String("op", op),
		zap.Uint64("movie_id", movieID),
		zap.Int("shows", len(shows)),
		zap.Int("cancelled", len(cancelled)),
	)
	e.releaseAll(ctx, cancelled, shows)
	return cancelled, nil
}

// cascadeShow cancels the show's active reservations, restores its
// inventory to full capacity and deletes it with its reservations. A show
// that no longer exists yields repository.ErrShowNotFound.
func (e *BookingEngine) cascadeShow(ctx context.Context, tx repository.Tx, showID uint64) (model.Show, []model.Reservation, error) {
	s, err := tx.ShowForUpdate(ctx, showID)
	if err != nil {
		return model.Show{}, nil, err
	}
	active, err := tx.ActiveReservationsByShow(ctx, showID)
	if err != nil {
		return model.Show{}, nil, err
	}

	now := e.now()
	credit := 0
	for i := range active {
		if err := tx.CancelReservation(ctx, active[i].ID, now); err != nil {
			return model.Show{}, nil, err
		}
		active[i].Status = model.ReservationCancelled
		active[i].CancelledAt = &now
		credit += active[i].Seats
	}
	if err := tx.AddAvailableSeats(ctx, showID, credit); err != nil {
		return model.Show{}, nil, err
	}
	s.AvailableSeats += credit
	if err := tx.DeleteShow(ctx, showID); err != nil {
		return model.Show{}, nil, err
	}
	return s, active, nil
}

func (e *BookingEngine) releaseAll(ctx context.Context, cancelled []model.Reservation, shows map[uint64]model.Show) {
	seats := 0
	for _, r := range cancelled {
		seats += r.Seats
		e.notify(ctx, EventCancelled, r, shows[r.ShowID])
	}
	e.metrics.SeatsReleased(seats)
}

// withShowLocks holds the locks of every show in ids, acquired in
// ascending order, while fn runs.
func (e *BookingEngine) withShowLocks(ctx context.Context, ids []uint64, fn func() error) error {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	releases := make([]func(), 0, len(ids))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()
	for _, id := range ids {
		release, err := e.acquire(ctx, lock.ShowKey(id))
		if err != nil {
			return err
		}
		releases = append(releases, release)
	}
	return fn()
}

func (e *BookingEngine) acquire(ctx context.Context, key string) (func(), error) {
	if e.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.lockTimeout)
		defer cancel()
	}
	start := time.Now()
	release, err := e.locker.Acquire(ctx, key)
	e.metrics.LockWait(time.Since(start))
	if err != nil {
		return nil, &Error{Kind: KindStorageUnavailable, Message: "resource busy, retry later", Err: err}
	}
	return release, nil
}

// finish converts err into the engine's taxonomy and records the outcome.
// Errors that are not already classified are infrastructure failures.
func (e *BookingEngine) finish(op, metric string, err error) error {
	if err == nil {
		e.metrics.Operation(metric, "ok")
		return nil
	}
	var se *Error
	if !errors.As(err, &se) {
		switch {
		case errors.Is(err, repository.ErrDuplicateReservation):
			se = conflict("duplicate reservation")
		default:
			se = unavailable(op, err)
		}
	}
	e.metrics.Operation(metric, string(se.Kind))
	if se.Kind == KindStorageUnavailable {
		e.log.Error("operation failed", zap.String("op", op), zap.Error(err))
	} else {
		e.log.Debug("operation rejected", zap.String("op", op), zap.String("kind", string(se.Kind)), zap.String("message", se.Message))
	}
	return se
}

func (e *BookingEngine) notify(ctx context.Context, typ EventType, r model.Reservation, show model.Show) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, typ, r, show); err != nil {
		e.log.Warn("event publish failed",
			zap.String("type", string(typ)),
			zap.Uint64("reservation_id", r.ID),
			zap.Error(err),
		)
	}
}
