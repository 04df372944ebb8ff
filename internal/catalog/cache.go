// Package catalog caches the read-only vulnerability definitions for the
// lifetime of a session. Entries serve double duty: objective display and
// the classifier's match target set.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ctfquest/internal/domain"
)

// Fetcher fetches the vulnerability catalog from the backend.
type Fetcher interface {
	Catalog(ctx context.Context) ([]domain.CatalogEntry, error)
}

// Cache is the session-scoped catalog cache.
type Cache struct {
	api    Fetcher
	logger *slog.Logger

	mu      sync.RWMutex
	entries []domain.CatalogEntry
	loaded  bool
}

// New creates an empty cache backed by the given fetcher.
func New(api Fetcher, logger *slog.Logger) *Cache {
	return &Cache{api: api, logger: logger}
}

// Load fetches the catalog once. Subsequent calls are no-ops unless Reload
// is used.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload(ctx)
}

// Reload forces a fresh catalog fetch, replacing the cached entries.
func (c *Cache) Reload(ctx context.Context) error {
	entries, err := c.api.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("loading vulnerability catalog: %w", err)
	}

	c.mu.Lock()
	c.entries = entries
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug("vulnerability catalog loaded", "entries", len(entries))
	return nil
}

// Entries returns a copy of the cached catalog.
func (c *Cache) Entries() []domain.CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByID looks up a catalog entry by its integer id.
func (c *Cache) ByID(id int) (domain.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.ID == id {
			return e, true
		}
	}
	return domain.CatalogEntry{}, false
}

// ByToken looks up a catalog entry by its flag token.
func (c *Cache) ByToken(token string) (domain.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.FlagToken == token {
			return e, true
		}
	}
	return domain.CatalogEntry{}, false
}

// Loaded reports whether the catalog has been fetched.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}
