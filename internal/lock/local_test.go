package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
		counter int
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, ShowKey(1))
			require.NoError(t, err)
			defer release()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			counter++
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 32, counter)
	assert.Zero(t, l.size())
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	r1, err := l.Acquire(ctx, ShowKey(1))
	require.NoError(t, err)
	defer r1()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	r2, err := l.Acquire(ctx2, ShowKey(2))
	require.NoError(t, err)
	r2()
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), MovieKey(9))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, MovieKey(9))
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Equal(t, 1, l.size())

	release()
	release() // idempotent
	assert.Zero(t, l.size())

	again, err := l.Acquire(context.Background(), MovieKey(9))
	require.NoError(t, err)
	again()
}

func TestLocalLocker_WaiterProceedsAfterRelease(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	release, err := l.Acquire(ctx, ShowKey(3))
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := l.Acquire(ctx, ShowKey(3))
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the lock was held")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "show:42", ShowKey(42))
	assert.Equal(t, "movie:7", MovieKey(7))
}
