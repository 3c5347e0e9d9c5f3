package repository

import (
	"context"
	"strings"
	"time"
)

// ShowSearchQuery defines filters and pagination for searching shows.
// Page is 1-based.
type ShowSearchQuery struct {
	Title        string    // substring of the movie title, case-insensitive
	Genre        string    // exact genre, case-insensitive
	From         time.Time // shows starting strictly after From
	To           time.Time // and not after To, when set
	OnlyBookable bool      // skip sold-out shows
	Page         int
	PageSize     int
}

// ShowListing is a show joined with its movie for browse pages.
type ShowListing struct {
	ShowID         uint64    `json:"show_id"`
	MovieID        uint64    `json:"movie_id"`
	Title          string    `json:"title"`
	Genre          string    `json:"genre,omitempty"`
	Screen         uint32    `json:"screen"`
	StartsAt       time.Time `json:"starts_at"`
	PriceCents     uint32    `json:"price_cents"`
	AvailableSeats int       `json:"available_seats"`
	TotalSeats     int       `json:"total_seats"`
}

// Normalize clamps pagination to sane bounds.
func (q ShowSearchQuery) Normalize() ShowSearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return q
}

// SearchUpcoming returns one page of matching shows, earliest first, and
// the total number of matches.
func (r *ShowRepo) SearchUpcoming(ctx context.Context, q ShowSearchQuery) ([]ShowListing, int64, error) {
	q = q.Normalize()
	where := []string{"s.starts_at > ?"}
	args := []any{q.From.UTC()}

	if !q.To.IsZero() {
		where = append(where, "s.starts_at <= ?")
		args = append(args, q.To.UTC())
	}
	if q.Title != "" {
		where = append(where, "LOWER(m.title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	if q.Genre != "" {
		where = append(where, "LOWER(m.genre) = ?")
		args = append(args, strings.ToLower(q.Genre))
	}
	if q.OnlyBookable {
		where = append(where, "s.available_seats > 0")
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM shows s
		JOIN movies m ON m.id = s.movie_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT s.id, m.id, m.title, m.genre, s.screen, s.starts_at,
			s.price_cents, s.available_seats, s.total_seats
		FROM shows s
		JOIN movies m ON m.id = s.movie_id
		WHERE ` + cond + `
		ORDER BY s.starts_at ASC, s.id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]ShowListing, 0, q.PageSize)
	for rows.Next() {
		var d ShowListing
		if err := rows.Scan(&d.ShowID, &d.MovieID, &d.Title, &d.Genre, &d.Screen, &d.StartsAt,
			&d.PriceCents, &d.AvailableSeats, &d.TotalSeats); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
