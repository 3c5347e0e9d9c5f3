// Package lock provides keyed mutual exclusion. Every mutation of a
// show's inventory runs while holding the show's key, so operations on
// the same show are totally ordered and operations on different shows
// never contend.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAcquired is returned when a lock could not be taken before the
// context ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires an exclusive lock on key. The returned release func is
// idempotent and must be called exactly when the critical section ends.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ShowKey is the lock key guarding a show's inventory.
func ShowKey(showID uint64) string { return fmt.Sprintf("show:%d", showID) }

// MovieKey guards the set of shows belonging to a movie.
func MovieKey(movieID uint64) string { return fmt.Sprintf("movie:%d", movieID) }
