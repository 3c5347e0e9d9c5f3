package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-reservation/internal/lock"
	"github.com/iliyamo/showtime-reservation/internal/logger"
	"github.com/iliyamo/showtime-reservation/internal/model"
	"github.com/iliyamo/showtime-reservation/internal/repository"
)

// NewShow carries the fields an administrator supplies when scheduling a
// show. Available seats always start equal to TotalSeats.
type NewShow struct {
	Screen     uint32
	StartsAt   time.Time
	PriceCents uint32
	TotalSeats int
}

// CatalogService manages movies and their shows. It creates inventory
// but never changes available seats afterwards; removal goes through
// BookingEngine.
type CatalogService struct {
	store  repository.Store
	locker lock.Locker
	log    *logger.Logger
	now    func() time.Time
}

func NewCatalogService(store repository.Store, locker lock.Locker, log *logger.Logger) *CatalogService {
	if store == nil || locker == nil {
		panic("service: nil dependency passed to NewCatalogService")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogService{
		store:  store,
		locker: locker,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *CatalogService) CreateMovie(ctx context.Context, m model.Movie) (model.Movie, error) {
	const op = "service.CreateMovie"
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return model.Movie{}, invalidState("title is required")
	}
	m.ID = 0
	if err := c.store.CreateMovie(ctx, &m); err != nil {
		c.log.Error("create movie failed", zap.String("op", op), zap.Error(err))
		return model.Movie{}, unavailable(op, err)
	}
	c.log.Info("movie created", zap.Uint64("movie_id", m.ID), zap.String("title", m.Title))
	return m, nil
}

// UpdateMovie replaces the descriptive fields of movie m.ID under the
// movie lock. Shows and inventory are not touched.
func (c *CatalogService) UpdateMovie(ctx context.Context, m model.Movie) (model.Movie, error) {
	const op = "service.UpdateMovie"
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return model.Movie{}, invalidState("title is required")
	}

	release, err := c.locker.Acquire(ctx, lock.MovieKey(m.ID))
	if err != nil {
		return model.Movie{}, &Error{Kind: KindStorageUnavailable, Message: "resource busy, retry later", Err: err}
	}
	defer release()

	err = c.store.Atomic(ctx, func(tx repository.Tx) error {
		if _, err := tx.MovieForUpdate(ctx, m.ID); err != nil {
			return err
		}
		return tx.UpdateMovie(ctx, &m)
	})
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return model.Movie{}, notFound("movie not found")
		}
		c.log.Error("update movie failed", zap.String("op", op), zap.Error(err))
		return model.Movie{}, unavailable(op, err)
	}
	c.log.Info("movie updated", zap.Uint64("movie_id", m.ID), zap.String("title", m.Title))
	return m, nil
}

// AddShow schedules a show of movieID. It holds the movie lock so a
// concurrent RemoveMovie either sees the new show or runs first.
func (c *CatalogService) AddShow(ctx context.Context, movieID uint64, in NewShow) (model.Show, error) {
	const op = "service.AddShow"
	if in.TotalSeats < 1 {
		return model.Show{}, invalidState("total seats must be at least 1")
	}
	if !in.StartsAt.After(c.now()) {
		return model.Show{}, invalidState("show must start in the future")
	}

	release, err := c.locker.Acquire(ctx, lock.MovieKey(movieID))
	if err != nil {
		return model.Show{}, &Error{Kind: KindStorageUnavailable, Message: "resource busy, retry later", Err: err}
	}
	defer release()

	show := model.Show{
		MovieID:    movieID,
		Screen:     in.Screen,
		StartsAt:   in.StartsAt.UTC(),
		PriceCents: in.PriceCents,
		TotalSeats: in.TotalSeats,
	}
	err = c.store.Atomic(ctx, func(tx repository.Tx) error {
		if _, err := tx.MovieForUpdate(ctx, movieID); err != nil {
			return err
		}
		return tx.CreateShow(ctx, &show)
	})
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return model.Show{}, notFound("movie not found")
		}
		c.log.Error("add show failed", zap.String("op", op), zap.Error(err))
		return model.Show{}, unavailable(op, err)
	}
	c.log.Info("show scheduled",
		zap.Uint64("show_id", show.ID),
		zap.Uint64("movie_id", movieID),
		zap.Time("starts_at", show.StartsAt),
		zap.Int("total_seats", show.TotalSeats),
	)
	return show, nil
}

func (c *CatalogService) Movies(ctx context.Context) ([]model.Movie, error) {
	ms, err := c.store.Movies(ctx)
	if err != nil {
		return nil, unavailable("service.Movies", err)
	}
	return ms, nil
}

func (c *CatalogService) Movie(ctx context.Context, id uint64) (model.Movie, error) {
	m, err := c.store.Movie(ctx, id)
	if errors.Is(err, repository.ErrMovieNotFound) {
		return model.Movie{}, notFound("movie not found")
	}
	if err != nil {
		return model.Movie{}, unavailable("service.Movie", err)
	}
	return m, nil
}

// Show returns a show with its current availability.
func (c *CatalogService) Show(ctx context.Context, id uint64) (model.Show, error) {
	s, err := c.store.Show(ctx, id)
	if errors.Is(err, repository.ErrShowNotFound) {
		return model.Show{}, notFound("show not found")
	}
	if err != nil {
		return model.Show{}, unavailable("service.Show", err)
	}
	return s, nil
}

// UpcomingShows lists the movie's shows that have not started yet,
// earliest first.
func (c *CatalogService) UpcomingShows(ctx context.Context, movieID uint64) ([]model.Show, error) {
	if _, err := c.Movie(ctx, movieID); err != nil {
		return nil, err
	}
	shows, err := c.store.UpcomingShows(ctx, movieID, c.now())
	if err != nil {
		return nil, unavailable("service.UpcomingShows", err)
	}
	return shows, nil
}

// SearchShows pages through upcoming shows across all movies. From is
// raised to now so started shows never appear.
func (c *CatalogService) SearchShows(ctx context.Context, q repository.ShowSearchQuery) ([]repository.ShowListing, int64, error) {
	if now := c.now(); q.From.Before(now) {
		q.From = now
	}
	if !q.To.IsZero() && !q.To.After(q.From) {
		return []repository.ShowListing{}, 0, nil
	}
	items, total, err := c.store.SearchShows(ctx, q.Normalize())
	if err != nil {
		return nil, 0, unavailable("service.SearchShows", err)
	}
	return items, total, nil
}
