package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nholik/uptime-sentinel/internal/clock"
	"github.com/nholik/uptime-sentinel/internal/history"
	"github.com/rs/zerolog"
)

// FileStore persists history as JSON on disk.
type FileStore struct {
	path   string
	clock  clock.Clock
	logger zerolog.Logger
}

// NewFileStore returns a JSON-backed history store. A nil clock uses the system clock.
func NewFileStore(path string, c clock.Clock, logger zerolog.Logger) *FileStore {
	if c == nil {
		c = clock.System{}
	}
	return &FileStore{
		path:   path,
		clock:  c,
		logger: logger,
	}
}

// Path returns the canonical file path.
func (s *FileStore) Path() string {
	return s.path
}

// document mirrors history.History with every field required.
type document struct {
	States     *[]history.Event `json:"states"`
	LastUpdate *uint64          `json:"last_update"`
}

// Load reads history from disk. A missing file yields an empty history stamped
// with the current time; an unreadable or undecodable file is an error.
func (s *FileStore) Load(ctx context.Context) (history.History, error) {
	h, err := s.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug().Str("path", s.path).Msg("state file missing, starting fresh")
		return history.New(clock.Unix(s.clock)), nil
	}
	return h, err
}

// Read is Load without the cold-start default: a missing file is ErrNotFound.
func (s *FileStore) Read(ctx context.Context) (history.History, error) {
	if err := ctx.Err(); err != nil {
		return history.History{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return history.History{}, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return history.History{}, fmt.Errorf("read state file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return history.History{}, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	if doc.States == nil || doc.LastUpdate == nil {
		return history.History{}, fmt.Errorf("%w: %s: missing states or last_update", ErrCorrupt, s.path)
	}

	h := history.History{States: *doc.States, LastUpdate: *doc.LastUpdate}
	if err := h.Validate(); err != nil {
		return history.History{}, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	return h, nil
}

// Save writes history to disk atomically: the document is written and synced
// to a temporary file in the same directory, then renamed over the canonical path.
func (s *FileStore) Save(ctx context.Context, h history.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.States == nil {
		h.States = []history.Event{}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = os.Remove(tempFile.Name())
	}

	if err := json.NewEncoder(tempFile).Encode(h); err != nil {
		_ = tempFile.Close()
		cleanup()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace state file: %w", err)
	}

	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}

	return nil
}
