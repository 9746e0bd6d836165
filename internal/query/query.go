package query

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/nholik/uptime-sentinel/internal/history"
	"github.com/nholik/uptime-sentinel/internal/state"
	"github.com/rs/zerolog"
)

// Cache holds the most recent in-memory history published by the monitor loop.
type Cache struct {
	mu     sync.RWMutex
	latest *history.History
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// Publish replaces the cached document with a copy of h.
func (c *Cache) Publish(h history.History) {
	snapshot := h.Clone()
	c.mu.Lock()
	c.latest = &snapshot
	c.mu.Unlock()
}

// Latest returns a copy of the cached document, if any.
func (c *Cache) Latest() (history.History, bool) {
	if c == nil {
		return history.History{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return history.History{}, false
	}
	return c.latest.Clone(), true
}

// Result is a history document along with where it came from.
type Result struct {
	History history.History
	// Stale is set when the durable file could not be read and the last
	// in-memory snapshot was served instead.
	Stale bool
}

// Service answers read-only queries against the monitoring history.
type Service struct {
	store  state.Store
	cache  *Cache
	page   []byte
	logger zerolog.Logger
}

// NewService constructs a Service. cache may be nil.
func NewService(store state.Store, cache *Cache, page []byte, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		page:   page,
		logger: logger,
	}
}

// History re-reads the durable file and returns it, preferring the cached
// snapshot when it is at least as new or the file does not exist yet. If the
// file cannot be read the cached snapshot is returned as stale; with no
// snapshot the load error is returned.
func (s *Service) History(ctx context.Context) (Result, error) {
	cached, haveCached := s.cache.Latest()

	durable, err := s.read(ctx)
	if errors.Is(err, state.ErrNotFound) {
		if haveCached {
			return Result{History: cached}, nil
		}
		durable, err = s.store.Load(ctx)
	}
	if err != nil {
		if haveCached {
			s.logger.Warn().Err(err).Msg("history load failed, serving cached snapshot")
			return Result{History: cached, Stale: true}, nil
		}
		return Result{}, fmt.Errorf("load history: %w", err)
	}

	if haveCached && cached.LastUpdate >= durable.LastUpdate {
		return Result{History: cached}, nil
	}
	return Result{History: durable}, nil
}

func (s *Service) read(ctx context.Context) (history.History, error) {
	if r, ok := s.store.(state.Reader); ok {
		return r.Read(ctx)
	}
	return s.store.Load(ctx)
}

// Page returns the dashboard markup.
func (s *Service) Page() []byte {
	return s.page
}

// LoadPage reads the dashboard markup once from fsys.
func LoadPage(fsys fs.FS, name string) ([]byte, error) {
	page, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read dashboard page: %w", err)
	}
	return page, nil
}
