package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MovieRecord mirrors the movies table.
type MovieRecord struct {
	ID              uint64
	Title           string
	Description     string
	Genre           string
	Director        string
	DurationMinutes uint32
	ReleaseDate     *time.Time
	PosterURL       string
	CreatedAt       time.Time
}

const movieColumns = `id, title, description, genre, director, duration_minutes, release_date, poster_url, created_at`

// MovieRepo manages the catalog of movies.
type MovieRepo struct {
	db *sql.DB
}

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

func scanMovie(row rowScanner) (MovieRecord, error) {
	var m MovieRecord
	var release sql.NullTime
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Genre, &m.Director,
		&m.DurationMinutes, &release, &m.PosterURL, &m.CreatedAt); err != nil {
		return MovieRecord{}, err
	}
	if release.Valid {
		t := release.Time
		m.ReleaseDate = &t
	}
	return m, nil
}

// Create inserts a movie and populates its ID and created_at.
func (r *MovieRepo) Create(ctx context.Context, m *MovieRecord) error {
	const op = "repository.MovieRepo.Create"
	const q = `INSERT INTO movies (title, description, genre, director, duration_minutes, release_date, poster_url)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	var release any
	if m.ReleaseDate != nil {
		release = m.ReleaseDate.UTC()
	}
	res, err := r.db.ExecContext(ctx, q, m.Title, m.Description, m.Genre, m.Director, m.DurationMinutes, release, m.PosterURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rec, err := r.get(ctx, r.db, uint64(id), false)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	*m = rec
	return nil
}

// GetByID returns ErrMovieNotFound when the movie does not exist.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (MovieRecord, error) {
	return r.get(ctx, r.db, id, false)
}

// ForUpdateTx reads a movie and holds its row lock until tx ends.
func (r *MovieRepo) ForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (MovieRecord, error) {
	return r.get(ctx, tx, id, true)
}

func (r *MovieRepo) get(ctx context.Context, q dbtx, id uint64, forUpdate bool) (MovieRecord, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanMovie(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return MovieRecord{}, ErrMovieNotFound
	}
	return m, err
}

// List returns every movie ordered by title.
func (r *MovieRepo) List(ctx context.Context) ([]MovieRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MovieRecord
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateTx overwrites the descriptive columns of m.ID and reads the row
// back into m.
func (r *MovieRepo) UpdateTx(ctx context.Context, tx *sql.Tx, m *MovieRecord) error {
	const op = "repository.MovieRepo.UpdateTx"
	const q = `UPDATE movies
               SET title = ?, description = ?, genre = ?, director = ?, duration_minutes = ?, release_date = ?, poster_url = ?
               WHERE id = ?`
	var release any
	if m.ReleaseDate != nil {
		release = m.ReleaseDate.UTC()
	}
	if _, err := tx.ExecContext(ctx, q, m.Title, m.Description, m.Genre, m.Director,
		m.DurationMinutes, release, m.PosterURL, m.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	// RowsAffected is 0 for an unchanged row, so existence is checked by
	// reading it back.
	rec, err := r.get(ctx, tx, m.ID, false)
	if err != nil {
		return err
	}
	*m = rec
	return nil
}

// DeleteTx removes a movie. Its shows must already be gone.
func (r *MovieRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMovieNotFound
	}
	return nil
}
