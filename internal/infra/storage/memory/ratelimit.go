package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter per user. A window opens with the
// first message after the previous one expired; rejected calls do not extend it.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*rateWindow
}

type rateWindow struct {
	start time.Time
	count int
}

// NewRateLimiter builds a limiter allowing limit messages per window. A nil
// clock means time.Now.
func NewRateLimiter(limit int, window time.Duration, clock func() time.Time) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     clock,
		windows: make(map[string]*rateWindow),
	}
}

func (l *RateLimiter) Consume(ctx context.Context, userID string) (bool, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[userID]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[userID] = &rateWindow{start: now, count: 1}
		l.sweep(now)
		return true, nil
	}
	if w.count >= l.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// sweep drops expired windows once the map grows past a few hundred users.
func (l *RateLimiter) sweep(now time.Time) {
	if len(l.windows) < 512 {
		return
	}
	for user, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, user)
		}
	}
}
