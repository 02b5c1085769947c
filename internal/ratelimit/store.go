// Package ratelimit implements the fixed-window limiter used on ingestion and
// tenant read routes. Counters live behind Store so a single instance can keep
// them in process while a fleet shares them through Redis.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

var ErrCapacityExceeded = errors.New("ratelimit: key capacity exceeded")

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time left in the current window rounded up to whole
// seconds, never less than one second.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Store counts hits per key in fixed windows.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}
