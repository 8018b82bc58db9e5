package app

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Signal/internal/domain"
)

var ErrDialThrottled = errors.New("dial throttled")

// DialLimiter bounds how many push-dials one caller may fire per sliding window.
type DialLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewDialLimiter returns a limiter; limit <= 0 disables throttling.
func NewDialLimiter(limit int, interval time.Duration) *DialLimiter {
	return &DialLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *DialLimiter) Allow(uid domain.UserID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[uid]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}

	rl.history[uid] = append(fresh, now)
	return true
}
