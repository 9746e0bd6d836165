package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nholik/uptime-sentinel/internal/clock"
	"github.com/nholik/uptime-sentinel/internal/history"
	"github.com/rs/zerolog"
)

func fixedClock(secs int64) clock.Clock {
	return clock.Func(func() time.Time { return time.Unix(secs, 0) })
}

func TestFileStore_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "data.json")
	store := NewFileStore(path, fixedClock(1), zerolog.Nop())

	h := history.History{
		States: []history.Event{
			{Start: 100, State: history.StateReachable},
			{Start: 110, State: history.StateUnreachable},
			{Start: 500, State: history.StateUnknown},
		},
		LastUpdate: 505,
	}

	if err := store.Save(context.Background(), h); err != nil {
		t.Fatalf("save state: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if !reflect.DeepEqual(loaded, h) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, h)
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "missing.json")
	store := NewFileStore(path, fixedClock(1234), zerolog.Nop())

	h, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if len(h.States) != 0 || h.States == nil {
		t.Fatalf("expected empty non-nil states, got %#v", h.States)
	}
	if h.LastUpdate != 1234 {
		t.Fatalf("expected last update 1234, got %d", h.LastUpdate)
	}
}

func TestFileStore_ReadMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileStore(filepath.Join(tmpDir, "missing.json"), fixedClock(1234), zerolog.Nop())

	if _, err := store.Read(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{not-json"},
		{name: "unknown state", body: `{"states":[{"start":1,"state":"Up"}],"last_update":1}`},
		{name: "negative timestamp", body: `{"states":[],"last_update":-1}`},
		{name: "unordered", body: `{"states":[{"start":5,"state":"Ok"},{"start":1,"state":"Err"}],"last_update":6}`},
		{name: "null document", body: "null"},
		{name: "empty object", body: "{}"},
		{name: "foreign document", body: `{"foo":1}`},
		{name: "missing last_update", body: `{"states":[]}`},
		{name: "missing states", body: `{"last_update":5}`},
		{name: "null states", body: `{"states":null,"last_update":5}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			path := filepath.Join(tmpDir, "data.json")
			store := NewFileStore(path, fixedClock(1), zerolog.Nop())

			if err := os.WriteFile(path, []byte(tc.body), 0o600); err != nil {
				t.Fatalf("write corrupt file: %v", err)
			}

			_, err := store.Load(context.Background())
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestFileStore_UnreadableFile(t *testing.T) {
	tmpDir := t.TempDir()
	// A directory at the canonical path cannot be read as a file.
	path := filepath.Join(tmpDir, "data.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	store := NewFileStore(path, fixedClock(1), zerolog.Nop())

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("expected error for unreadable file")
	}
}

func TestFileStore_SaveCreatesNestedDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "data.json")
	store := NewFileStore(path, fixedClock(1), zerolog.Nop())

	if err := store.Save(context.Background(), history.History{LastUpdate: 9}); err != nil {
		t.Fatalf("save state: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if strings.TrimSpace(string(raw)) != `{"states":[],"last_update":9}` {
		t.Fatalf("unexpected file contents: %s", raw)
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "data.json")
	store := NewFileStore(path, fixedClock(1), zerolog.Nop())

	for i := 0; i < 3; i++ {
		if err := store.Save(context.Background(), history.New(uint64(i))); err != nil {
			t.Fatalf("save state: %v", err)
		}
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "data.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only data.json, got %v", names)
	}
}

func TestFileStore_InterruptedSaveKeepsPreviousSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "data.json")
	store := NewFileStore(path, fixedClock(1), zerolog.Nop())

	previous := history.History{
		States:     []history.Event{{Start: 10, State: history.StateReachable}},
		LastUpdate: 15,
	}
	if err := store.Save(context.Background(), previous); err != nil {
		t.Fatalf("save state: %v", err)
	}

	// A crash between write and rename leaves a partial temp file behind.
	partial := filepath.Join(tmpDir, ".data.json-123.tmp")
	if err := os.WriteFile(partial, []byte(`{"states":[{"start":10,"sta`), 0o600); err != nil {
		t.Fatalf("write partial temp file: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !reflect.DeepEqual(loaded, previous) {
		t.Fatalf("expected previous snapshot, got %+v", loaded)
	}
}

func TestFileStore_SaveFailureKeepsPreviousSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "data.json")
	store := NewFileStore(path, fixedClock(1), zerolog.Nop())

	previous := history.New(5)
	if err := store.Save(context.Background(), previous); err != nil {
		t.Fatalf("save state: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Save(ctx, history.New(6)); err == nil {
		t.Fatalf("expected canceled save to fail")
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if loaded.LastUpdate != 5 {
		t.Fatalf("expected previous snapshot, got %+v", loaded)
	}
}

func TestFileStore_ConcurrentLoadNeverSeesPartialDocument(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "data.json")
	store := NewFileStore(path, fixedClock(1), zerolog.Nop())

	big := history.History{LastUpdate: 1}
	for i := 0; i < 2000; i++ {
		state := history.StateReachable
		if i%2 == 1 {
			state = history.StateUnreachable
		}
		big.States = append(big.States, history.Event{Start: uint64(i), State: state})
	}
	if err := store.Save(context.Background(), big); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(2); ctx.Err() == nil; i++ {
			next := big.Clone()
			next.LastUpdate = i
			if err := store.Save(context.Background(), next); err != nil {
				t.Errorf("save: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		loaded, err := store.Load(context.Background())
		if err != nil {
			cancel()
			wg.Wait()
			t.Fatalf("load during save: %v", err)
		}
		if len(loaded.States) != len(big.States) {
			cancel()
			wg.Wait()
			t.Fatalf("torn read: %d events", len(loaded.States))
		}
	}

	cancel()
	wg.Wait()
}
