package model

import "time"

// Show represents a scheduled screening of a movie.  It carries the
// aggregate seat inventory for the screening: TotalSeats is fixed at
// creation and AvailableSeats is decremented by bookings and credited
// back by cancellations.
//
// Fields:
//  ID             – primary key identifier.
//  MovieID        – catalog item being screened.
//  Screen         – screen (auditorium) number.
//  StartsAt       – when the show begins; bookings close at this instant.
//  PriceCents     – flat price per seat in cents.
//  TotalSeats     – capacity of the show.
//  AvailableSeats – seats not held by active reservations.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Show struct {
    ID             uint64    `json:"id"`              // shows.id
    MovieID        uint64    `json:"movie_id"`        // shows.movie_id
    Screen         uint32    `json:"screen"`          // shows.screen
    StartsAt       time.Time `json:"starts_at"`       // shows.starts_at
    PriceCents     uint32    `json:"price_cents"`     // shows.price_cents
    TotalSeats     int       `json:"total_seats"`     // shows.total_seats
    AvailableSeats int       `json:"available_seats"` // shows.available_seats
    CreatedAt      time.Time `json:"created_at"`      // shows.created_at
    UpdatedAt      time.Time `json:"updated_at"`      // shows.updated_at
}

// StartedAt reports whether the show has started at the given instant.
// A show starting exactly at now counts as started.
func (s Show) StartedAt(now time.Time) bool {
    return !s.StartsAt.After(now)
}
