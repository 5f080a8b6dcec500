// Package throttle counts authentication attempts in fixed windows.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Throttle interface {
	// Hit records one attempt for key and reports whether it is within the limit.
	Hit(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

type Redis struct {
	rdb    *redis.Client
	max    int64
	window time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, max int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, max: int64(max), window: window, prefix: "throttle:login:"}
}

// Hit starts the window on the first attempt. Plain EXPIRE keeps this working
// on servers older than Redis 7, which lack EXPIRE NX.
func (r *Redis) Hit(ctx context.Context, key string) (bool, error) {
	k := r.prefix + key
	n, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.rdb.Expire(ctx, k, r.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= r.max, nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Memory is a process-local Throttle for tests and single-instance setups.
type Memory struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{max: max, window: window, buckets: map[string]*bucket{}, now: time.Now}
}

func (m *Memory) Hit(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(m.window)}
		m.buckets[key] = b
	}
	b.count++
	return b.count <= m.max, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.buckets, key)
	m.mu.Unlock()
	return nil
}
