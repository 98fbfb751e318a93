package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Locker hands out short-lived exclusive locks backed by Redis SET NX.
type Locker struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewLocker creates a new Locker. Locks expire after ttl even if never released.
func NewLocker(redis *RedisClient, ttl time.Duration) *Locker {
	return &Locker{redis: redis, ttl: ttl}
}

// TryLock acquires key if free. The returned release func is safe to call once
// the work is done; it only deletes the lock if this holder still owns it.
func (l *Locker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, "lock:"+key, token, l.ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}
	release := func() {
		// Detached from the request context so a canceled request still releases.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.redis.DeleteIfEquals(rctx, "lock:"+key, token)
	}
	return release, true, nil
}
