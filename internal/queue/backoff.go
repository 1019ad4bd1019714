package queue

import (
	"sync"
	"time"
)

// attempt records one job outcome in the rolling window.
type attempt struct {
	failed    bool
	timestamp time.Time
}

// FailureTracker tracks recent job outcomes for one queue in a rolling
// time window to detect a spike in failures, the same rolling-window
// shape used to detect toxic fill flow: a burst of same-direction signals
// in a short window is itself the alarm, independent of any single
// attempt's cause.
type FailureTracker struct {
	mu sync.RWMutex

	windowDuration time.Duration
	attempts       []attempt

	failureRateThreshold float64 // fraction of failed attempts that trips the breaker
	minSample             int     // don't trip on noise before this many attempts
}

// NewFailureTracker creates a tracker with the given window and trip
// threshold.
func NewFailureTracker(windowDuration time.Duration, failureRateThreshold float64, minSample int) *FailureTracker {
	return &FailureTracker{
		windowDuration:        windowDuration,
		attempts:              make([]attempt, 0, 100),
		failureRateThreshold:  failureRateThreshold,
		minSample:             minSample,
	}
}

// Record adds a job outcome and evicts stale entries outside the window.
func (ft *FailureTracker) Record(failed bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.attempts = append(ft.attempts, attempt{failed: failed, timestamp: time.Now()})
	ft.evictStaleLocked()
}

func (ft *FailureTracker) evictStaleLocked() {
	if len(ft.attempts) == 0 {
		return
	}
	cutoff := time.Now().Add(-ft.windowDuration)
	validIdx := -1
	for i, a := range ft.attempts {
		if a.timestamp.After(cutoff) {
			validIdx = i
			break
		}
	}
	if validIdx == -1 {
		ft.attempts = ft.attempts[:0]
		return
	}
	if validIdx > 0 {
		ft.attempts = ft.attempts[validIdx:]
	}
}

// FailureRate returns the fraction of attempts in the current window that
// failed, and whether the sample is large enough to trust.
func (ft *FailureTracker) FailureRate() (rate float64, enoughSamples bool) {
	ft.mu.Lock()
	ft.evictStaleLocked()
	ft.mu.Unlock()

	ft.mu.RLock()
	defer ft.mu.RUnlock()

	if len(ft.attempts) < ft.minSample {
		return 0, false
	}
	var failed int
	for _, a := range ft.attempts {
		if a.failed {
			failed++
		}
	}
	return float64(failed) / float64(len(ft.attempts)), true
}

// IsSpiking reports whether the current failure rate has crossed the
// configured threshold.
func (ft *FailureTracker) IsSpiking() bool {
	rate, enough := ft.FailureRate()
	return enough && rate > ft.failureRateThreshold
}
