package history

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the reachability classification of the monitored target.
type State string

const (
	StateUnknown     State = "Unknown"
	StateReachable   State = "Ok"
	StateUnreachable State = "Err"
)

// DefaultRetainWindow bounds how far back events are kept.
const DefaultRetainWindow = 7 * 24 * time.Hour

// Valid reports whether s is one of the three known states.
func (s State) Valid() bool {
	switch s {
	case StateUnknown, StateReachable, StateUnreachable:
		return true
	}
	return false
}

// UnmarshalJSON rejects any literal other than the three known states.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	parsed := State(raw)
	if !parsed.Valid() {
		return fmt.Errorf("unknown state %q", raw)
	}
	*s = parsed
	return nil
}

// Event marks that the target has been in State since Start (unix seconds).
type Event struct {
	Start uint64 `json:"start"`
	State State  `json:"state"`
}

// History is the persisted monitoring document.
type History struct {
	States     []Event `json:"states"`
	LastUpdate uint64  `json:"last_update"`
}

// New returns an empty history stamped with lastUpdate.
func New(lastUpdate uint64) History {
	return History{States: []Event{}, LastUpdate: lastUpdate}
}

// Clone returns a deep copy safe to hand across goroutines.
func (h History) Clone() History {
	events := make([]Event, len(h.States))
	copy(events, h.States)
	return History{States: events, LastUpdate: h.LastUpdate}
}

// Current returns the state implied by the most recent event.
func (h History) Current() State {
	return Latest(h.States)
}

// Latest returns the state of the last event, or StateUnknown when empty.
func Latest(events []Event) State {
	if len(events) == 0 {
		return StateUnknown
	}
	return events[len(events)-1].State
}

// RecordTransition appends {ts, observed} when observed differs from the
// latest state. It reports whether an event was appended.
func RecordTransition(events []Event, observed State, ts uint64) ([]Event, bool) {
	if observed == Latest(events) {
		return events, false
	}
	return append(events, Event{Start: ts, State: observed}), true
}

// PadGap appends an Unknown event at lastUpdate when the latest known state
// started before lastUpdate, marking the span since the last check as unmonitored.
func PadGap(events []Event, lastUpdate uint64) ([]Event, bool) {
	if len(events) == 0 {
		return events, false
	}
	last := events[len(events)-1]
	if last.State == StateUnknown || last.Start >= lastUpdate {
		return events, false
	}
	return append(events, Event{Start: lastUpdate, State: StateUnknown}), true
}

// Retain drops, in place, every event with start <= now-window.
func Retain(events []Event, now uint64, window time.Duration) []Event {
	secs := uint64(window / time.Second)
	if now < secs {
		return events
	}
	cutoff := now - secs

	kept := events[:0]
	for _, event := range events {
		if event.Start > cutoff {
			kept = append(kept, event)
		}
	}
	return kept
}

// Validate checks that events are time-ordered and carry known states.
func (h History) Validate() error {
	var prev uint64
	for i, event := range h.States {
		if !event.State.Valid() {
			return fmt.Errorf("event %d: unknown state %q", i, event.State)
		}
		if i > 0 && event.Start < prev {
			return fmt.Errorf("event %d: start %d precedes %d", i, event.Start, prev)
		}
		prev = event.Start
	}
	return nil
}
