package chat

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyMessage    = errors.New("no message provided")
	ErrNoFile          = errors.New("no file provided")
	ErrUnsupportedFile = errors.New("unsupported file type, upload a .pdf or .txt file")
	ErrNotUTF8         = errors.New("text file is not valid UTF-8")
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidAction   = errors.New("invalid action")
	ErrMissingSession  = errors.New("session_id is required")
	ErrAsyncDisabled   = errors.New("async chat is disabled")
	ErrJobNotFound     = errors.New("job not found")

	errNoProvider      = errors.New("no language model provider configured")
	errEmptyCompletion = errors.New("empty completion")
)

// QuotaError reports an exhausted session quota. It is not fatal: the session
// stays usable once the window resets.
type QuotaError struct {
	Usage Usage
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf(quotaFormat, e.Usage.Limit, e.Usage.TimeUntilReset)
}

// formatRemaining renders d as H:MM:SS.
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
