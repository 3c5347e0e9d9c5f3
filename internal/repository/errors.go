// Package repository defines error types that are reused across the
// stores. These sentinel values let the engine distinguish expected
// outcomes (a missing row, a uniqueness or capacity guard firing) from
// infrastructure failures, which are returned as-is.
package repository

import "errors"

var (
	// ErrShowNotFound indicates that a show was not located.
	ErrShowNotFound = errors.New("show not found")

	// ErrMovieNotFound indicates that a movie was not located.
	ErrMovieNotFound = errors.New("movie not found")

	// ErrReservationNotFound indicates that no matching reservation exists.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrDuplicateReservation is returned when a write would create a
	// second ACTIVE reservation for the same user and show.
	ErrDuplicateReservation = errors.New("duplicate active reservation")

	// ErrCapacityViolation is returned when an inventory update would
	// leave available seats below zero or above the show's total.
	ErrCapacityViolation = errors.New("seat capacity violation")
)
