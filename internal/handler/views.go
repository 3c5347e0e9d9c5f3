package handler

import (
	"time"

	"github.com/iliyamo/showtime-reservation/internal/model"
)

// reservationView is the JSON shape of a reservation. Show details are
// filled in when the show still exists.
type reservationView struct {
	ID               uint64     `json:"id"`
	UserID           uint64     `json:"user_id"`
	ShowID           uint64     `json:"show_id"`
	Seats            int        `json:"seats"`
	Status           string     `json:"status"`
	Active           bool       `json:"active"`
	TotalAmountCents uint64     `json:"total_amount_cents"`
	BookedAt         time.Time  `json:"booked_at"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`

	MovieTitle   string     `json:"movie_title,omitempty"`
	ShowStartsAt *time.Time `json:"show_starts_at,omitempty"`
	Screen       *uint32    `json:"screen,omitempty"`
	SeatsLeft    *int       `json:"seats_left,omitempty"`
}

func newReservationView(r model.Reservation) reservationView {
	return reservationView{
		ID:               r.ID,
		UserID:           r.UserID,
		ShowID:           r.ShowID,
		Seats:            r.Seats,
		Status:           r.Status,
		Active:           r.Active(),
		TotalAmountCents: r.TotalAmountCents,
		BookedAt:         r.CreatedAt,
		CancelledAt:      r.CancelledAt,
	}
}

func (v *reservationView) withShow(s model.Show, m *model.Movie) {
	starts := s.StartsAt
	screen := s.Screen
	left := s.AvailableSeats
	v.ShowStartsAt = &starts
	v.Screen = &screen
	v.SeatsLeft = &left
	if m != nil {
		v.MovieTitle = m.Title
	}
}
