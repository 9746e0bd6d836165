package healthcheck

import (
	"sync"
	"time"

	"github.com/nholik/uptime-sentinel/internal/history"
)

// Snapshot describes the latest monitor cycle.
type Snapshot struct {
	LastCycleTime   *time.Time    `json:"last_cycle_time"`
	CycleDurationMS int64         `json:"cycle_duration_ms"`
	TargetState     history.State `json:"target_state"`
	EventsRetained  int           `json:"events_retained"`
}

// Tracker records monitor cycle timing for health endpoints.
type Tracker struct {
	mu             sync.RWMutex
	lastCycle      time.Time
	cycleDuration  time.Duration
	targetState    history.State
	eventsRetained int
	ready          bool
	now            func() time.Time
}

// NewTracker constructs a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{targetState: history.StateUnknown, now: time.Now}
}

// RecordCycle updates cycle timing and readiness.
func (t *Tracker) RecordCycle(duration time.Duration, targetState history.State, eventsRetained int) {
	if t == nil {
		return
	}
	now := t.now().UTC()
	t.mu.Lock()
	t.lastCycle = now
	t.cycleDuration = duration
	t.targetState = targetState
	t.eventsRetained = eventsRetained
	t.ready = true
	t.mu.Unlock()
}

// Snapshot returns the current tracker snapshot.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{TargetState: history.StateUnknown}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if !t.lastCycle.IsZero() {
		value := t.lastCycle
		last = &value
	}
	return Snapshot{
		LastCycleTime:   last,
		CycleDurationMS: int64(t.cycleDuration / time.Millisecond),
		TargetState:     t.targetState,
		EventsRetained:  t.eventsRetained,
	}
}

// Ready reports whether at least one cycle has completed.
func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Healthy reports whether the last cycle completed within 2x the poll interval.
func (t *Tracker) Healthy(now time.Time, pollInterval time.Duration) bool {
	if t == nil {
		return false
	}
	if pollInterval <= 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastCycle.IsZero() {
		return false
	}
	return now.Sub(t.lastCycle) <= 2*pollInterval
}
