// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Queue names. All queues are durable and carry persistent JSON messages.
const (
	ReservationEventsQueue = "reservation.events"
	CatalogRemovedQueue    = "catalog.removed"
)

// ReservationEvent is published after a booking or cancellation commits.
// It carries enough for downstream consumers to log, notify or aggregate
// without querying the primary database.
type ReservationEvent struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"` // reservation.booked | reservation.cancelled
	ReservationID    uint64    `json:"reservation_id"`
	UserID           uint64    `json:"user_id"`
	ShowID           uint64    `json:"show_id"`
	MovieID          uint64    `json:"movie_id"`
	Seats            int       `json:"seats"`
	TotalAmountCents uint64    `json:"total_amount_cents"`
	AvailableSeats   int       `json:"available_seats"`
	StartsAt         time.Time `json:"starts_at"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// CatalogRemovedEvent asks the service to remove a movie (with all of its
// shows) or a single show. Exactly one of the fields is set.
type CatalogRemovedEvent struct {
	MovieID uint64 `json:"movie_id,omitempty"`
	ShowID  uint64 `json:"show_id,omitempty"`
}
