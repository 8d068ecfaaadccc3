// Package cache persists learned (payee, raw category) to expense account
// mappings between runs.
//
// The in-memory map is authoritative for a run. Stores only load it at
// construction and persist it on Save, and neither path ever fails the
// caller: a broken store degrades to an empty or unsaved cache with a
// warning.
package cache

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"sync"
)

// Store loads and persists the whole mapping.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, entries map[string]string) error
	// Describe names the backing location for logs and status output.
	Describe() string
}

// Cache is the in-memory mapping plus its store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
	store   Store
	logger  *slog.Logger
}

// Key builds the cache key for a payee and raw category.
func Key(payee, rawCategory string) string {
	return strings.TrimSpace(payee) + "|" + strings.TrimSpace(rawCategory)
}

// New loads the mapping from store. Load failures are logged and the cache
// starts empty.
func New(ctx context.Context, store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cache", "store", store.Describe())

	entries, err := store.Load(ctx)
	if err != nil {
		logger.Warn("failed to load classification cache, starting empty", "error", err)
		entries = nil
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	logger.Debug("loaded classification cache", "entries", len(entries))

	return &Cache{entries: entries, store: store, logger: logger}
}

// Get returns the account for key.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Set records an account for key in memory. Call Save to persist it.
func (c *Cache) Set(key, account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = account
}

// Contains reports whether key has a mapping.
func (c *Cache) Contains(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Len returns the number of mappings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of the mapping.
func (c *Cache) Entries() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.entries)
}

// Save persists the whole mapping. Failures are logged, not returned.
func (c *Cache) Save(ctx context.Context) {
	entries := c.Entries()
	if err := c.store.Save(ctx, entries); err != nil {
		c.logger.Warn("failed to save classification cache", "entries", len(entries), "error", err)
		return
	}
	c.logger.Debug("saved classification cache", "entries", len(entries))
}
