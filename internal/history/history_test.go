package history

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRecordTransition_Scenario(t *testing.T) {
	var events []Event

	events, appended := RecordTransition(events, StateReachable, 100)
	if !appended {
		t.Fatalf("expected first probe to append")
	}
	events, appended = RecordTransition(events, StateReachable, 105)
	if appended {
		t.Fatalf("expected repeated state to be a no-op")
	}
	events, appended = RecordTransition(events, StateUnreachable, 110)
	if !appended {
		t.Fatalf("expected change to append")
	}

	want := []Event{
		{Start: 100, State: StateReachable},
		{Start: 110, State: StateUnreachable},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestRecordTransition_UnknownOnEmptyIsNoop(t *testing.T) {
	events, appended := RecordTransition(nil, StateUnknown, 10)
	if appended || len(events) != 0 {
		t.Fatalf("expected no event for unknown on empty history, got %+v", events)
	}
}

func TestPadGap(t *testing.T) {
	cases := []struct {
		name       string
		events     []Event
		lastUpdate uint64
		wantPadded bool
	}{
		{
			name:       "empty history",
			lastUpdate: 500,
		},
		{
			name:       "stale reachable run",
			events:     []Event{{Start: 400, State: StateReachable}},
			lastUpdate: 500,
			wantPadded: true,
		},
		{
			name:       "stale unreachable run",
			events:     []Event{{Start: 400, State: StateUnreachable}},
			lastUpdate: 500,
			wantPadded: true,
		},
		{
			name:       "already unknown",
			events:     []Event{{Start: 400, State: StateUnknown}},
			lastUpdate: 500,
		},
		{
			name:       "event at last update",
			events:     []Event{{Start: 500, State: StateReachable}},
			lastUpdate: 500,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			before := len(tc.events)
			got, padded := PadGap(tc.events, tc.lastUpdate)
			if padded != tc.wantPadded {
				t.Fatalf("padded = %v, want %v", padded, tc.wantPadded)
			}
			if !tc.wantPadded {
				if len(got) != before {
					t.Fatalf("expected no change, got %+v", got)
				}
				return
			}
			last := got[len(got)-1]
			if last.Start != tc.lastUpdate || last.State != StateUnknown {
				t.Fatalf("unexpected padding event: %+v", last)
			}
		})
	}
}

func TestRetain_DropsExpired(t *testing.T) {
	events := []Event{
		{Start: 100, State: StateReachable},
		{Start: 140, State: StateUnreachable},
		{Start: 141, State: StateReachable},
		{Start: 190, State: StateUnknown},
	}

	got := Retain(events, 200, 60*time.Second)

	want := []Event{
		{Start: 141, State: StateReachable},
		{Start: 190, State: StateUnknown},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected retained events: %+v", got)
	}
}

func TestRetain_NowBeforeWindowKeepsAll(t *testing.T) {
	events := []Event{{Start: 0, State: StateReachable}, {Start: 5, State: StateUnreachable}}

	got := Retain(events, 30, time.Minute)
	if len(got) != 2 {
		t.Fatalf("expected all events kept, got %+v", got)
	}
}

func TestRetain_CanEmptyHistory(t *testing.T) {
	events := []Event{{Start: 10, State: StateReachable}}

	got := Retain(events, 10_000, time.Minute)
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %+v", got)
	}
}

func TestHistory_JSONContract(t *testing.T) {
	h := History{
		States: []Event{
			{Start: 1, State: StateUnknown},
			{Start: 2, State: StateReachable},
			{Start: 3, State: StateUnreachable},
		},
		LastUpdate: 4,
	}

	encoded, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"states":[{"start":1,"state":"Unknown"},{"start":2,"state":"Ok"},{"start":3,"state":"Err"}],"last_update":4}`
	if string(encoded) != want {
		t.Fatalf("unexpected encoding:\n got %s\nwant %s", encoded, want)
	}
}

func TestHistory_EmptyEncodesArray(t *testing.T) {
	encoded, err := json.Marshal(New(7))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `{"states":[],"last_update":7}` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
}

func TestState_UnmarshalRejectsUnknownLiteral(t *testing.T) {
	var h History
	err := json.Unmarshal([]byte(`{"states":[{"start":1,"state":"Up"}],"last_update":1}`), &h)
	if err == nil || !strings.Contains(err.Error(), "unknown state") {
		t.Fatalf("expected unknown state error, got %v", err)
	}
}

func TestHistory_Validate(t *testing.T) {
	ok := History{States: []Event{{Start: 1, State: StateReachable}, {Start: 1, State: StateUnknown}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unordered := History{States: []Event{{Start: 5, State: StateReachable}, {Start: 4, State: StateUnreachable}}}
	if err := unordered.Validate(); err == nil {
		t.Fatalf("expected ordering error")
	}

	bogus := History{States: []Event{{Start: 5, State: State("Up")}}}
	if err := bogus.Validate(); err == nil {
		t.Fatalf("expected state error")
	}
}

func TestHistory_CloneIsIndependent(t *testing.T) {
	h := History{States: []Event{{Start: 1, State: StateReachable}}, LastUpdate: 1}
	c := h.Clone()
	c.States[0].State = StateUnreachable

	if h.States[0].State != StateReachable {
		t.Fatalf("clone shares backing array with original")
	}
	if h.Current() != StateReachable || c.Current() != StateUnreachable {
		t.Fatalf("unexpected current states %s %s", h.Current(), c.Current())
	}
}
