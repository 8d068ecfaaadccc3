package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Backend names accepted by OpenStore.
const (
	BackendFile     = "file"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Options selects and locates a store.
type Options struct {
	Backend string
	// Path is the JSON file or bolt database path.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// OpenStore returns the store for opts. The closer releases any database
// handle and must be called once the store is no longer used.
func OpenStore(ctx context.Context, opts Options) (Store, io.Closer, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Path), nopCloser{}, nil
	case BackendBolt:
		s, err := OpenBoltStore(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendPostgres:
		s, err := OpenPostgresStore(ctx, opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// OpenStoreOrMemory is OpenStore for an import run. When the backend cannot
// be opened it logs a warning and returns a MemoryStore, so the run goes on
// without learned mappings.
func OpenStoreOrMemory(ctx context.Context, opts Options, logger *slog.Logger) (Store, io.Closer) {
	store, closer, err := OpenStore(ctx, opts)
	if err == nil {
		return store, closer
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("cache backend unavailable, mappings will not be persisted",
		"backend", opts.Backend, "error", err)
	return NewMemoryStore(err), nopCloser{}
}

// errNotPersisted is returned by MemoryStore.Save.
var errNotPersisted = errors.New("mappings are not persisted")

// MemoryStore stands in for a backend that could not be opened. It loads
// nothing and its Save reports that nothing was persisted.
type MemoryStore struct {
	cause error
}

// NewMemoryStore returns a MemoryStore. cause is the reason the real
// backend is missing and may be nil.
func NewMemoryStore(cause error) *MemoryStore {
	return &MemoryStore{cause: cause}
}

// Describe implements Store.
func (s *MemoryStore) Describe() string { return "memory" }

// Load implements Store.
func (s *MemoryStore) Load(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

// Save implements Store.
func (s *MemoryStore) Save(context.Context, map[string]string) error {
	if s.cause != nil {
		return fmt.Errorf("%w: %w", errNotPersisted, s.cause)
	}
	return errNotPersisted
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
