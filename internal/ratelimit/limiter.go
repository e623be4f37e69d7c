// Package ratelimit implements sliding-window admission control for
// outbound adapter calls. Each remote source gets one Limiter shared by
// every adapter instance for that source; a call past the window budget is
// queued until a slot frees rather than rejected, up to a maximum wait.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tablekit/tablekit/internal/errors"
)

// Limiter implements a sliding window rate limiting algorithm. The window
// holds the timestamps of admitted calls; a new call is admitted when fewer
// than maxCalls timestamps remain inside the window.
type Limiter struct {
	maxCalls       int           // Maximum calls allowed in the window
	windowDuration time.Duration // Duration of the sliding window
	maxWait        time.Duration // Queue wait cap before surfacing a rate-limit error
	timestamps     []time.Time   // Timestamps of admitted calls
	mutex          sync.Mutex    // Protects timestamps

	now   func() time.Time // injectable clock for tests
	sleep func(context.Context, time.Duration) error
}

// NewLimiter creates a sliding window limiter admitting maxCalls per
// windowDuration, queueing excess callers for at most maxWait.
func NewLimiter(maxCalls int, windowDuration, maxWait time.Duration) *Limiter {
	if maxCalls < 1 {
		maxCalls = 1
	}

	return &Limiter{
		maxCalls:       maxCalls,
		windowDuration: windowDuration,
		maxWait:        maxWait,
		timestamps:     make([]time.Time, 0, maxCalls+1),
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

// TryAcquire attempts to take a slot without waiting. Returns true and
// consumes a slot when the window has room.
func (l *Limiter) TryAcquire() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	l.cleanOldTimestamps(now)

	if len(l.timestamps) >= l.maxCalls {
		return false
	}

	l.timestamps = append(l.timestamps, now)

	return true
}

// Acquire takes a slot, waiting for the oldest call in the window to expire
// when the budget is exhausted. Waiting is bounded by the limiter's maxWait
// and by ctx; exceeding either surfaces a rate-limit error so the caller
// can present "try later" semantics.
func (l *Limiter) Acquire(ctx context.Context) error {
	deadline := l.now().Add(l.maxWait)

	for {
		l.mutex.Lock()
		now := l.now()
		l.cleanOldTimestamps(now)

		if len(l.timestamps) < l.maxCalls {
			l.timestamps = append(l.timestamps, now)
			l.mutex.Unlock()

			return nil
		}

		// Window full: the next slot frees when the oldest admitted call
		// leaves the window.
		wait := l.timestamps[0].Add(l.windowDuration).Sub(now)
		l.mutex.Unlock()

		if wait <= 0 {
			continue
		}

		if now.Add(wait).After(deadline) {
			return errors.ErrQueueWaitExceeded("", l.maxWait.String())
		}

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// CurrentCount returns the number of admitted calls still inside the window.
func (l *Limiter) CurrentCount() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.cleanOldTimestamps(l.now())

	return len(l.timestamps)
}

// TimeUntilSlot returns how long until the oldest admitted call expires
// from the window, or zero when a slot is free now.
func (l *Limiter) TimeUntilSlot() time.Duration {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	l.cleanOldTimestamps(now)

	if len(l.timestamps) < l.maxCalls {
		return 0
	}

	expire := l.timestamps[0].Add(l.windowDuration)
	if expire.After(now) {
		return expire.Sub(now)
	}

	return 0
}

// Reset clears all admitted timestamps.
func (l *Limiter) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.timestamps = l.timestamps[:0]
}

// cleanOldTimestamps removes timestamps outside the current window.
// Must be called with the mutex held.
func (l *Limiter) cleanOldTimestamps(now time.Time) {
	cutoff := now.Add(-l.windowDuration)

	validIndex := 0
	for i, timestamp := range l.timestamps {
		if timestamp.After(cutoff) {
			validIndex = i

			break
		}
		validIndex = i + 1
	}

	if validIndex > 0 {
		copy(l.timestamps, l.timestamps[validIndex:])
		l.timestamps = l.timestamps[:len(l.timestamps)-validIndex]
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
