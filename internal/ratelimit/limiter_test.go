package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type factory func(t *testing.T, limit int, window time.Duration, c *testClock) Limiter

func backends() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T, limit int, window time.Duration, c *testClock) Limiter {
			return NewMemoryLimiter(limit, window).WithClock(c.now)
		},
		"redis": func(t *testing.T, limit int, window time.Duration, c *testClock) Limiter {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return NewRedisLimiter(rdb, limit, window).WithClock(c.now)
		},
	}
}

func newClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestLimiter(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("fresh session is allowed", func(t *testing.T) {
				l := mk(t, 50, 3*time.Hour, newClock())
				st, err := l.Check(context.Background(), "s1")
				require.NoError(t, err)
				require.True(t, st.Allowed)
				require.Equal(t, 0, st.Count)
				require.Equal(t, 50, st.Remaining)
				require.True(t, st.WindowEnd.IsZero())
			})

			t.Run("limit reached blocks", func(t *testing.T) {
				ctx := context.Background()
				c := newClock()
				l := mk(t, 5, time.Hour, c)
				for i := 1; i <= 5; i++ {
					n, err := l.Increment(ctx, "s1")
					require.NoError(t, err)
					require.Equal(t, i, n)
				}
				st, err := l.Check(ctx, "s1")
				require.NoError(t, err)
				require.False(t, st.Allowed)
				require.Equal(t, 5, st.Count)
				require.Equal(t, 0, st.Remaining)
				require.True(t, st.WindowEnd.Equal(c.now().Add(time.Hour)))
			})

			t.Run("window expiry resets without explicit reset", func(t *testing.T) {
				ctx := context.Background()
				c := newClock()
				l := mk(t, 2, 3*time.Hour, c)
				_, _ = l.Increment(ctx, "s1")
				_, _ = l.Increment(ctx, "s1")

				c.advance(3*time.Hour + time.Second)
				st, err := l.Check(ctx, "s1")
				require.NoError(t, err)
				require.True(t, st.Allowed)
				require.Equal(t, 0, st.Count)

				active, err := l.ListActive(ctx)
				require.NoError(t, err)
				require.Empty(t, active)
			})

			t.Run("increment after expiry opens a new window", func(t *testing.T) {
				ctx := context.Background()
				c := newClock()
				l := mk(t, 50, time.Hour, c)
				for i := 0; i < 7; i++ {
					_, _ = l.Increment(ctx, "s1")
				}

				// no Check in between: the stale record must not be accumulated onto
				c.advance(time.Hour)
				n, err := l.Increment(ctx, "s1")
				require.NoError(t, err)
				require.Equal(t, 1, n)

				active, err := l.ListActive(ctx)
				require.NoError(t, err)
				require.Len(t, active, 1)
				require.Equal(t, 1, active[0].Count)
				require.True(t, active[0].WindowStart.Equal(c.now()))
			})

			// The window ends between check and increment: the check saw the old window,
			// the increment lands in a new one with count 1. Accepted single-process race.
			t.Run("boundary crossed between check and increment", func(t *testing.T) {
				ctx := context.Background()
				c := newClock()
				l := mk(t, 3, time.Hour, c)
				_, _ = l.Increment(ctx, "s1")
				_, _ = l.Increment(ctx, "s1")

				c.advance(time.Hour - time.Millisecond)
				st, err := l.Check(ctx, "s1")
				require.NoError(t, err)
				require.Equal(t, 2, st.Count)

				c.advance(time.Millisecond)
				n, err := l.Increment(ctx, "s1")
				require.NoError(t, err)
				require.Equal(t, 1, n)

				st, err = l.Check(ctx, "s1")
				require.NoError(t, err)
				require.Equal(t, 1, st.Count)
				require.Equal(t, 2, st.Remaining)
			})

			t.Run("reset deletes the record", func(t *testing.T) {
				ctx := context.Background()
				l := mk(t, 1, time.Hour, newClock())
				_, _ = l.Increment(ctx, "s1")
				st, _ := l.Check(ctx, "s1")
				require.False(t, st.Allowed)

				require.NoError(t, l.Reset(ctx, "s1"))
				st, err := l.Check(ctx, "s1")
				require.NoError(t, err)
				require.True(t, st.Allowed)
				require.Equal(t, 0, st.Count)
			})

			t.Run("list active is sorted", func(t *testing.T) {
				ctx := context.Background()
				l := mk(t, 10, time.Hour, newClock())
				_, _ = l.Increment(ctx, "b")
				_, _ = l.Increment(ctx, "a")
				_, _ = l.Increment(ctx, "a")

				active, err := l.ListActive(ctx)
				require.NoError(t, err)
				require.Len(t, active, 2)
				require.Equal(t, "a", active[0].SessionID)
				require.Equal(t, 2, active[0].Count)
				require.Equal(t, "b", active[1].SessionID)
			})

			t.Run("concurrent increments are not lost", func(t *testing.T) {
				ctx := context.Background()
				l := mk(t, 1000, time.Hour, newClock())
				var wg sync.WaitGroup
				for i := 0; i < 40; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := l.Increment(ctx, "shared")
						require.NoError(t, err)
					}()
				}
				wg.Wait()
				st, err := l.Check(ctx, "shared")
				require.NoError(t, err)
				require.Equal(t, 40, st.Count)
			})
		})
	}
}
