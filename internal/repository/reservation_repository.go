package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"
)

// ReservationRepo provides persistence for the reservation ledger. All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationRecord mirrors the schema of the reservations table.
type ReservationRecord struct {
	ID               uint64
	UserID           uint64
	ShowID           uint64
	Seats            int
	Status           string
	TotalAmountCents uint64
	CreatedAt        time.Time
	CancelledAt      *time.Time
}

const reservationColumns = `id, user_id, show_id, seats, status, total_amount_cents, created_at, cancelled_at`

func scanReservation(row rowScanner) (ReservationRecord, error) {
	var r ReservationRecord
	var cancelled sql.NullTime
	if err := row.Scan(&r.ID, &r.UserID, &r.ShowID, &r.Seats, &r.Status,
		&r.TotalAmountCents, &r.CreatedAt, &cancelled); err != nil {
		return ReservationRecord{}, err
	}
	if cancelled.Valid {
		t := cancelled.Time
		r.CancelledAt = &t
	}
	return r, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID. A second ACTIVE row for
// the same user and show violates uq_reservations_active and is reported
// as ErrDuplicateReservation.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *ReservationRecord) error {
	const op = "repository.ReservationRepo.CreateTx"
	const q = `INSERT INTO reservations (user_id, show_id, seats, status, total_amount_cents, created_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.UserID, res.ShowID, res.Seats, res.Status, res.TotalAmountCents, res.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapMySQLError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rec, err := r.get(ctx, tx, uint64(id), false)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	*res = rec
	return nil
}

// GetByID returns ErrReservationNotFound when no row matches.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (ReservationRecord, error) {
	return r.get(ctx, r.db, id, false)
}

// ForUpdateTx reads a reservation and locks the row until tx ends.
func (r *ReservationRepo) ForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (ReservationRecord, error) {
	return r.get(ctx, tx, id, true)
}

func (r *ReservationRepo) get(ctx context.Context, q dbtx, id uint64, forUpdate bool) (ReservationRecord, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rec, err := scanReservation(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ReservationRecord{}, ErrReservationNotFound
	}
	return rec, err
}

// ActiveByUserAndShowTx returns the user's ACTIVE reservation for the
// show or ErrReservationNotFound.
func (r *ReservationRepo) ActiveByUserAndShowTx(ctx context.Context, tx *sql.Tx, userID, showID uint64) (ReservationRecord, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
          WHERE user_id = ? AND show_id = ? AND status = 'ACTIVE' LIMIT 1`
	rec, err := scanReservation(tx.QueryRowContext(ctx, q, userID, showID))
	if errors.Is(err, sql.ErrNoRows) {
		return ReservationRecord{}, ErrReservationNotFound
	}
	return rec, err
}

// ActiveByShowTx returns every ACTIVE reservation of a show, locking them.
func (r *ReservationRepo) ActiveByShowTx(ctx context.Context, tx *sql.Tx, showID uint64) ([]ReservationRecord, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
          WHERE show_id = ? AND status = 'ACTIVE' ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReservationRecord
	for rows.Next() {
		rec, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CancelTx flips an ACTIVE reservation to CANCELLED. Reservations that
// are not ACTIVE are left alone and reported as ErrReservationNotFound.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	const q = `UPDATE reservations SET status = 'CANCELLED', cancelled_at = ? WHERE id = ? AND status = 'ACTIVE'`
	res, err := tx.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// DeleteByShowTx removes every reservation of a show regardless of status.
func (r *ReservationRepo) DeleteByShowTx(ctx context.Context, tx *sql.Tx, showID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE show_id = ?`, showID)
	return err
}

// IterByUser streams a user's reservations newest first.
func (r *ReservationRepo) IterByUser(ctx context.Context, userID uint64) iter.Seq2[ReservationRecord, error] {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	return r.stream(ctx, q, userID)
}

// IterAll streams every reservation newest first.
func (r *ReservationRepo) IterAll(ctx context.Context) iter.Seq2[ReservationRecord, error] {
	q := `SELECT ` + reservationColumns + ` FROM reservations ORDER BY created_at DESC, id DESC`
	return r.stream(ctx, q)
}

// stream runs the query each time the sequence is ranged over and keeps
// the rows open only while the consumer pulls.
func (r *ReservationRepo) stream(ctx context.Context, q string, args ...any) iter.Seq2[ReservationRecord, error] {
	return func(yield func(ReservationRecord, error) bool) {
		rows, err := r.db.QueryContext(ctx, q, args...)
		if err != nil {
			yield(ReservationRecord{}, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanReservation(rows)
			if err != nil {
				yield(ReservationRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ReservationRecord{}, err)
		}
	}
}
