package ratelimit

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/careerbot/internal/errx"
)

const DefaultKeyPrefix = "ratelimit:"

// incrScript opens a fresh window when the record is missing or expired, else bumps count.
// ARGV: now (unix ms), window (ms).
var incrScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local start = tonumber(redis.call('HGET', KEYS[1], 'window_start'))
if (not start) or (now - start >= window) then
  redis.call('HSET', KEYS[1], 'count', 1, 'window_start', now)
  redis.call('PEXPIRE', KEYS[1], window)
  return 1
end
return redis.call('HINCRBY', KEYS[1], 'count', 1)
`)

// RedisLimiter shares records across processes. Expiry is still decided from window_start,
// the key TTL only garbage-collects abandoned sessions.
type RedisLimiter struct {
	rdb    redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		rdb:    rdb,
		prefix: DefaultKeyPrefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	l.now = now
	return l
}

func (l *RedisLimiter) key(sessionID string) string {
	return l.prefix + sessionID
}

func (l *RedisLimiter) load(ctx context.Context, key string) (count int, start time.Time, ok bool, err error) {
	vals, err := l.rdb.HMGet(ctx, key, "count", "window_start").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, time.Time{}, false, nil
		}
		return 0, time.Time{}, false, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return 0, time.Time{}, false, nil
	}
	count, err = strconv.Atoi(vals[0].(string))
	if err != nil {
		return 0, time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(vals[1].(string), 10, 64)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	return count, time.UnixMilli(ms).UTC(), true, nil
}

func (l *RedisLimiter) Check(ctx context.Context, sessionID string) (Status, error) {
	key := l.key(sessionID)
	count, start, ok, err := l.load(ctx, key)
	if err != nil {
		return Status{}, errx.WrapStore(err)
	}
	if !ok {
		return status(0, l.limit, time.Time{}, l.window), nil
	}
	if expired(start, l.now(), l.window) {
		if err := l.rdb.Del(ctx, key).Err(); err != nil {
			return Status{}, errx.WrapStore(err)
		}
		return status(0, l.limit, time.Time{}, l.window), nil
	}
	return status(count, l.limit, start, l.window), nil
}

func (l *RedisLimiter) Increment(ctx context.Context, sessionID string) (int, error) {
	n, err := incrScript.Run(ctx, l.rdb, []string{l.key(sessionID)},
		l.now().UnixMilli(), l.window.Milliseconds()).Int()
	if err != nil {
		return 0, errx.WrapStore(err)
	}
	return n, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, sessionID string) error {
	return errx.WrapStore(l.rdb.Del(ctx, l.key(sessionID)).Err())
}

func (l *RedisLimiter) ListActive(ctx context.Context) ([]Record, error) {
	var keys []string
	iter := l.rdb.Scan(ctx, 0, l.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}

	now := l.now()
	out := make([]Record, 0, len(keys))
	for _, key := range keys {
		count, start, ok, err := l.load(ctx, key)
		if err != nil {
			return nil, errx.WrapStore(err)
		}
		if !ok || expired(start, now, l.window) {
			continue
		}
		out = append(out, Record{
			SessionID:   strings.TrimPrefix(key, l.prefix),
			Count:       count,
			WindowStart: start,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}
