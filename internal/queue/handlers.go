package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-reservation/internal/logger"
	"github.com/iliyamo/showtime-reservation/internal/model"
	"github.com/iliyamo/showtime-reservation/internal/service"
)

// Remover is the part of the booking engine driven by catalog removals.
type Remover interface {
	RemoveMovie(ctx context.Context, movieID uint64) ([]model.Reservation, error)
	RemoveShow(ctx context.Context, showID uint64) ([]model.Reservation, error)
}

// Purger drops cached catalog responses.
type Purger interface {
	Purge(ctx context.Context) error
}

// CatalogRemovalHandler applies catalog.removed messages. A target that
// is already gone is acknowledged; storage failures are requeued. After
// a removal the response cache is purged when cache is non-nil.
func CatalogRemovalHandler(r Remover, cache Purger, log *logger.Logger) Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(ctx context.Context, body []byte) error {
		var ev CatalogRemovedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}

		var (
			cancelled []model.Reservation
			err       error
		)
		switch {
		case ev.MovieID != 0 && ev.ShowID != 0:
			return errors.New("catalog removal names both a movie and a show")
		case ev.MovieID != 0:
			cancelled, err = r.RemoveMovie(ctx, ev.MovieID)
		case ev.ShowID != 0:
			cancelled, err = r.RemoveShow(ctx, ev.ShowID)
		default:
			return errors.New("catalog removal names no target")
		}

		switch {
		case err == nil:
			log.Info("catalog removal applied",
				zap.Uint64("movie_id", ev.MovieID),
				zap.Uint64("show_id", ev.ShowID),
				zap.Int("cancelled", len(cancelled)),
			)
			if cache != nil {
				if err := cache.Purge(ctx); err != nil {
					log.Warn("cache purge failed", zap.Error(err))
				}
			}
			return nil
		case errors.Is(err, service.ErrNotFound):
			log.Info("catalog removal target already gone",
				zap.Uint64("movie_id", ev.MovieID),
				zap.Uint64("show_id", ev.ShowID),
			)
			return nil
		case errors.Is(err, service.ErrStorageUnavailable):
			return Retryable(err)
		default:
			return err
		}
	}
}

// AuditLog appends one human-readable line per reservation event to a
// file. Writes are serialized so concurrent consumers never interleave.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Handler returns the consumer Handler writing to the audit log.
func (a *AuditLog) Handler() Handler {
	return func(_ context.Context, body []byte) error {
		var ev ReservationEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		return a.Append(ev)
	}
}

func (a *AuditLog) Append(ev ReservationEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Ensure the log directory exists
	if dir := filepath.Dir(a.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single newline-terminated line.
func FormatAuditLine(ev ReservationEvent) string {
	action := "Reservation booked"
	if ev.Type == string(service.EventCancelled) {
		action = "Reservation cancelled"
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | show_id=%d | movie_id=%d | seats=%d | total=%d cents | available=%d | starts_at=%s\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), action, ev.ReservationID, ev.UserID, ev.ShowID, ev.MovieID,
		ev.Seats, ev.TotalAmountCents, ev.AvailableSeats, ev.StartsAt.UTC().Format(time.RFC3339))
}
