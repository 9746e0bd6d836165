package state

import (
	"context"
	"errors"

	"github.com/nholik/uptime-sentinel/internal/history"
)

// ErrCorrupt is returned when the backing file exists but cannot be decoded.
var ErrCorrupt = errors.New("state file corrupt")

// ErrNotFound is returned by Read when the backing file does not exist yet.
var ErrNotFound = errors.New("state file not found")

// Store defines the interface for persisting monitoring history.
type Store interface {
	Load(ctx context.Context) (history.History, error)
	Save(ctx context.Context, h history.History) error
}

// Reader is implemented by stores that can tell a missing document apart from
// an empty one.
type Reader interface {
	Read(ctx context.Context) (history.History, error)
}
