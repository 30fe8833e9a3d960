package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLimiter keeps records in a lock-guarded map. Single process only.
type MemoryLimiter struct {
	mu      sync.Mutex
	records map[string]*Record
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryLimiter{
		records: make(map[string]*Record),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// WithClock replaces time.Now, for tests.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Check(_ context.Context, sessionID string) (Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[sessionID]
	if !ok {
		return status(0, l.limit, time.Time{}, l.window), nil
	}
	if expired(rec.WindowStart, l.now(), l.window) {
		delete(l.records, sessionID)
		return status(0, l.limit, time.Time{}, l.window), nil
	}
	return status(rec.Count, l.limit, rec.WindowStart, l.window), nil
}

func (l *MemoryLimiter) Increment(_ context.Context, sessionID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[sessionID]
	if !ok || expired(rec.WindowStart, now, l.window) {
		l.records[sessionID] = &Record{SessionID: sessionID, Count: 1, WindowStart: now}
		return 1, nil
	}
	rec.Count++
	return rec.Count, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, sessionID)
	return nil
}

// ListActive returns unexpired records sorted by session id.
func (l *MemoryLimiter) ListActive(_ context.Context) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		if expired(rec.WindowStart, now, l.window) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}
