package model

import "time"

// Reservation statuses.  A reservation is created ACTIVE and may move to
// CANCELLED exactly once; no other transition exists.
const (
    ReservationActive    = "ACTIVE"
    ReservationCancelled = "CANCELLED"
)

// Reservation records a user's booking of a number of seats for a
// show.  Apart from Status and CancelledAt the record is immutable once
// written.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – requester who made the reservation.
//  ShowID           – show being reserved.
//  Seats            – number of seats held (always > 0).
//  Status           – ACTIVE or CANCELLED.
//  TotalAmountCents – seats × show price at booking time.
//  CreatedAt        – booking timestamp.
//  CancelledAt      – cancellation timestamp, nil while active.
type Reservation struct {
    ID               uint64     `json:"id"`                     // reservations.id
    UserID           uint64     `json:"user_id"`                // reservations.user_id
    ShowID           uint64     `json:"show_id"`                // reservations.show_id
    Seats            int        `json:"seats"`                  // reservations.seats
    Status           string     `json:"status"`                 // reservations.status
    TotalAmountCents uint64     `json:"total_amount_cents"`     // reservations.total_amount_cents
    CreatedAt        time.Time  `json:"created_at"`             // reservations.created_at
    CancelledAt      *time.Time `json:"cancelled_at,omitempty"` // reservations.cancelled_at (nullable)
}

// Active reports whether the reservation currently holds seats.
func (r Reservation) Active() bool { return r.Status == ReservationActive }
