package service

import (
	"context"

	"github.com/iliyamo/showtime-reservation/internal/model"
)

// EventType names a reservation lifecycle event.
type EventType string

const (
	EventBooked    EventType = "reservation.booked"
	EventCancelled EventType = "reservation.cancelled"
)

// Notifier is told about committed reservation changes. Delivery is
// best effort: a failing Notifier never undoes a committed operation.
type Notifier interface {
	Notify(ctx context.Context, typ EventType, r model.Reservation, show model.Show) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, typ EventType, r model.Reservation, show model.Show) error

func (f NotifierFunc) Notify(ctx context.Context, typ EventType, r model.Reservation, show model.Show) error {
	return f(ctx, typ, r, show)
}
