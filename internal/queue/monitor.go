package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Outcome is reported by a worker after processing one job.
type Outcome struct {
	Queue  string
	Failed bool
}

// PauseSignal tells intake to stop feeding a queue. Queue empty means
// every queue is paused (global breaker trip).
type PauseSignal struct {
	Queue  string
	Reason string
}

// Monitor aggregates per-queue outcomes and trips a circuit breaker that
// pauses intake of a queue whose failure rate spikes, rather than
// letting a bad batch retry itself into the ground. Transient errors
// are retried; a queue in persistent failure is paused for the cooldown
// period, after which the pause lapses on its own.
type Monitor struct {
	logger *slog.Logger

	mu       sync.RWMutex
	trackers map[string]*FailureTracker
	paused   map[string]time.Time // queue -> pause-until

	cooldown time.Duration

	reportCh chan Outcome
	pauseCh  chan PauseSignal
}

// NewMonitor creates a queue health monitor.
func NewMonitor(logger *slog.Logger, cooldown time.Duration) *Monitor {
	return &Monitor{
		logger:   logger.With("component", "queue_monitor"),
		trackers: make(map[string]*FailureTracker),
		paused:   make(map[string]time.Time),
		cooldown: cooldown,
		reportCh: make(chan Outcome, 256),
		pauseCh:  make(chan PauseSignal, 16),
	}
}

// Run starts the monitoring loop.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case o := <-m.reportCh:
			m.process(o)
		case <-ticker.C:
			m.clearExpiredPauses()
		}
	}
}

// Report submits a job outcome (non-blocking).
func (m *Monitor) Report(o Outcome) {
	select {
	case m.reportCh <- o:
	default:
		m.logger.Warn("queue monitor report channel full, dropping outcome", "queue", o.Queue)
	}
}

// PauseCh returns the channel pause signals are published on.
func (m *Monitor) PauseCh() <-chan PauseSignal {
	return m.pauseCh
}

// IsPaused reports whether intake should currently skip enqueuing to
// queue.
func (m *Monitor) IsPaused(queue string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	until, ok := m.paused[queue]
	return ok && time.Now().Before(until)
}

func (m *Monitor) process(o Outcome) {
	m.mu.Lock()
	tracker, ok := m.trackers[o.Queue]
	if !ok {
		tracker = NewFailureTracker(time.Minute, 0.5, 10)
		m.trackers[o.Queue] = tracker
	}
	m.mu.Unlock()

	tracker.Record(o.Failed)
	if !tracker.IsSpiking() {
		return
	}

	m.mu.Lock()
	alreadyPaused := time.Now().Before(m.paused[o.Queue])
	m.paused[o.Queue] = time.Now().Add(m.cooldown)
	m.mu.Unlock()

	if alreadyPaused {
		return
	}
	m.logger.Warn("queue failure rate spiked, pausing intake", "queue", o.Queue)
	select {
	case m.pauseCh <- PauseSignal{Queue: o.Queue, Reason: "failure rate spike"}:
	default:
	}
}

func (m *Monitor) clearExpiredPauses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for q, until := range m.paused {
		if now.After(until) {
			delete(m.paused, q)
		}
	}
}
