package airquality

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// IntervalLimiter enforces a minimum interval between successive calls to
// Wait. It is a courtesy throttle for upstream rate limits, not a
// correctness mechanism: skipping it only raises 429/timeout risk.
//
// Safe for concurrent use: overlapping collection runs share one limiter,
// and concurrent callers are spaced one interval apart.
type IntervalLimiter struct {
	clock    clockwork.Clock
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewIntervalLimiter creates a limiter with the given minimum interval.
// A nil clock means the real clock.
func NewIntervalLimiter(interval time.Duration, clock clockwork.Clock) *IntervalLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IntervalLimiter{clock: clock, interval: interval}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous call, or the context is cancelled. The first call never blocks.
// A cancelled call still consumes its slot.
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.clock.Now()
	target := l.next
	if target.Before(now) {
		target = now
	}
	l.next = target.Add(l.interval)
	l.mu.Unlock()

	if wait := target.Sub(now); wait > 0 {
		timer := l.clock.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.Chan():
		}
	}
	return nil
}
