package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock that another process re-acquired is never released by us.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker is a Locker shared by every replica of the service. The
// key expires after TTL so a crashed holder cannot block a show forever;
// the database row lock still protects the inventory if it does.
type RedisLocker struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewRedisLocker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		minBackoff: 5 * time.Millisecond,
		maxBackoff: 100 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	full := l.prefix + ":" + key
	token := uuid.NewString()
	backoff := l.minBackoff

	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("lock.Acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-t.C:
		}
		if backoff < l.maxBackoff {
			backoff *= 2
			if backoff > l.maxBackoff {
				backoff = l.maxBackoff
			}
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done; release on our own.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			// On failure the TTL frees the key.
			_ = releaseScript.Run(rctx, l.rdb, []string{full}, token).Err()
		})
	}, nil
}
