package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFixedWindow(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(3, time.Minute)
	m.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		ok, err := m.Hit(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := m.Hit(ctx, "ip:1.2.3.4")
	assert.False(t, ok, "fourth attempt in window")

	ok, _ = m.Hit(ctx, "email:a@example.com")
	assert.True(t, ok, "keys are independent")

	clock = clock.Add(time.Minute)
	ok, _ = m.Hit(ctx, "ip:1.2.3.4")
	assert.True(t, ok, "window expired")
}

func TestMemoryReset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1, time.Hour)
	_, _ = m.Hit(ctx, "k")
	ok, _ := m.Hit(ctx, "k")
	require.False(t, ok)

	require.NoError(t, m.Reset(ctx, "k"))
	ok, _ = m.Hit(ctx, "k")
	assert.True(t, ok)
}

func TestRedisUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	_, err := NewRedis(rdb, 5, time.Minute).Hit(context.Background(), "ip:1.2.3.4")
	assert.Error(t, err)
}

// counterHook answers INCR and EXPIRE in process and records what was sent.
type counterHook struct {
	counts map[string]int64
	sent   [][]any
}

func (h *counterHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *counterHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *counterHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.sent = append(h.sent, cmd.Args())
		switch c := cmd.(type) {
		case *redis.IntCmd:
			key := cmd.Args()[1].(string)
			h.counts[key]++
			c.SetVal(h.counts[key])
		case *redis.BoolCmd:
			c.SetVal(true)
		}
		return nil
	}
}

func TestRedisSetsWindowOnFirstHitOnly(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	hook := &counterHook{counts: map[string]int64{}}
	rdb.AddHook(hook)

	th := NewRedis(rdb, 2, time.Minute)
	ctx := context.Background()
	for i, want := range []bool{true, true, false} {
		ok, err := th.Hit(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "attempt %d", i+1)
	}

	var names []string
	for _, args := range hook.sent {
		names = append(names, args[0].(string))
		if args[0] == "expire" {
			assert.Len(t, args, 3, "no NX flag")
		}
	}
	assert.Equal(t, []string{"incr", "expire", "incr", "incr"}, names)
}
