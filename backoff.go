package walletauth

import (
	"sync"
	"time"
)

const (
	// BackoffBase is the wait after the first failure
	BackoffBase = 5 * time.Second
	// BackoffMax caps the wait between attempts
	BackoffMax = 30 * time.Second
	// BackoffReset forgets past failures once this much time has passed
	BackoffReset = 60 * time.Second
)

// BackoffWait returns min(BackoffBase * 2^failures, BackoffMax)
func BackoffWait(failures int) time.Duration {
	wait := BackoffBase
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= BackoffMax {
			return BackoffMax
		}
	}
	return wait
}

// Backoff tracks failed authentication attempts. It is safe for concurrent use.
type Backoff struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
}

// Failures returns the current failure count
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Wait returns the wait required by the current failure count
func (b *Backoff) Wait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BackoffWait(b.failures)
}

// Allow reports whether an attempt may start at now. A quiet period longer
// than BackoffReset clears the failure count.
func (b *Backoff) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures == 0 {
		return true
	}

	elapsed := now.Sub(b.lastFailure)
	if elapsed > BackoffReset {
		b.failures = 0
		return true
	}
	return elapsed >= BackoffWait(b.failures)
}

// Remaining returns how long until Allow(now) turns true
func (b *Backoff) Remaining(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures == 0 {
		return 0
	}
	left := BackoffWait(b.failures) - now.Sub(b.lastFailure)
	if left < 0 {
		return 0
	}
	return left
}

// RecordFailure counts one failed attempt at now
func (b *Backoff) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = now
}

// Reset clears all failure tracking
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.lastFailure = time.Time{}
}
