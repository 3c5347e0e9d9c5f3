// Package repository contains data access logic for the showtime
// inventory. This file holds the shows table: a show carries the fixed
// capacity and the mutable available-seat count of one screening.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"
	"fmt"
	"time"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ShowRecord mirrors the schema of the shows table.
type ShowRecord struct {
	ID             uint64
	MovieID        uint64
	Screen         uint32
	StartsAt       time.Time
	PriceCents     uint32
	TotalSeats     int
	AvailableSeats int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const showColumns = `id, movie_id, screen, starts_at, price_cents, total_seats, available_seats, created_at, updated_at`

// ShowRepo manages persistence for shows.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

func scanShow(row rowScanner) (ShowRecord, error) {
	var s ShowRecord
	err := row.Scan(&s.ID, &s.MovieID, &s.Screen, &s.StartsAt, &s.PriceCents,
		&s.TotalSeats, &s.AvailableSeats, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// CreateTx inserts a new show with available_seats equal to total_seats.
// The generated ID and DB defaults are populated on s.
func (r *ShowRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *ShowRecord) error {
	const op = "repository.ShowRepo.CreateTx"
	const q = `INSERT INTO shows (movie_id, screen, starts_at, price_cents, total_seats, available_seats)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.MovieID, s.Screen, s.StartsAt.UTC(), s.PriceCents, s.TotalSeats, s.TotalSeats)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapMySQLError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	// Query back the full row to populate timestamps.
	rec, err := r.get(ctx, tx, uint64(id), false)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	*s = rec
	return nil
}

// GetByID retrieves a show by its ID. It returns ErrShowNotFound if
// there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (ShowRecord, error) {
	return r.get(ctx, r.db, id, false)
}

// ForUpdateTx reads a show and holds its row lock until tx ends.
func (r *ShowRepo) ForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (ShowRecord, error) {
	return r.get(ctx, tx, id, true)
}

func (r *ShowRepo) get(ctx context.Context, q dbtx, id uint64, forUpdate bool) (ShowRecord, error) {
	query := `SELECT ` + showColumns + ` FROM shows WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	s, err := scanShow(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ShowRecord{}, ErrShowNotFound
	}
	return s, err
}

// AddAvailableTx adds delta to the show's available seats. The update is
// conditional on the result staying within 0..total_seats; when the
// guard rejects it ErrCapacityViolation is returned.
func (r *ShowRepo) AddAvailableTx(ctx context.Context, tx *sql.Tx, id uint64, delta int) error {
	const op = "repository.ShowRepo.AddAvailableTx"
	if delta == 0 {
		return nil
	}
	const q = `UPDATE shows SET available_seats = available_seats + ?
               WHERE id = ? AND available_seats + ? BETWEEN 0 AND total_seats`
	res, err := tx.ExecContext(ctx, q, delta, id, delta)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapMySQLError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		if _, err := r.get(ctx, tx, id, false); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w", op, ErrCapacityViolation)
	}
	return nil
}

// IDsByMovie lists the IDs of every show of a movie in ascending order.
func (r *ShowRepo) IDsByMovie(ctx context.Context, movieID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM shows WHERE movie_id = ? ORDER BY id`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUpcomingByMovie returns shows of a movie starting strictly after
// the given instant, earliest first.
func (r *ShowRepo) ListUpcomingByMovie(ctx context.Context, movieID uint64, after time.Time) ([]ShowRecord, error) {
	q := `SELECT ` + showColumns + ` FROM shows WHERE movie_id = ? AND starts_at > ? ORDER BY starts_at, id`
	rows, err := r.db.QueryContext(ctx, q, movieID, after.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShowRecord
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteTx removes the show row. Reservations must be removed first.
func (r *ShowRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM shows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrShowNotFound
	}
	return nil
}
