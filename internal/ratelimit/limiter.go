// Package ratelimit enforces "at most N messages per session per rolling window".
//
// Check and Increment are separate on purpose: callers check before doing expensive
// work and increment only once the message is consumed. A window that expires between
// the two calls is an accepted race; the increment then opens a fresh window.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultLimit  = 50
	DefaultWindow = 3 * time.Hour
)

// Status is the usage snapshot reported by Check.
type Status struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	// WindowEnd is zero when no window is open.
	WindowEnd time.Time
}

type Record struct {
	SessionID   string    `json:"session_id"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

type Limiter interface {
	// Check is a read, except that it deletes an expired record.
	Check(ctx context.Context, sessionID string) (Status, error)
	// Increment opens a window on first use (or after expiry) and returns the new count.
	Increment(ctx context.Context, sessionID string) (int, error)
	Reset(ctx context.Context, sessionID string) error
	ListActive(ctx context.Context) ([]Record, error)
}

func expired(start, now time.Time, window time.Duration) bool {
	return !now.Before(start.Add(window))
}

func status(count, limit int, start time.Time, window time.Duration) Status {
	st := Status{
		Allowed:   count < limit,
		Count:     count,
		Limit:     limit,
		Remaining: max(limit-count, 0),
	}
	if count > 0 {
		st.WindowEnd = start.Add(window)
	}
	return st
}
