// Package json implements an Exporter that keeps every imported posting in a
// JSON array file.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ArionMiles/beanbill/pkg/api"
)

// Config holds configuration for the JSON exporter.
type Config struct {
	Path string
}

// Exporter rewrites the JSON file with the accumulated postings on every
// export.
type Exporter struct {
	path     string
	postings []api.Posting
	mu       sync.Mutex
	logger   *slog.Logger
}

// New loads any postings already in the file.
func New(cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("json export path is required")
	}

	e := &Exporter{path: cfg.Path, logger: logger.With("component", "json_export")}
	if err := e.loadExisting(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.Path, err)
	}
	e.logger.Info("json export ready", "file", cfg.Path, "existing_count", len(e.postings))
	return e, nil
}

func (e *Exporter) loadExisting() error {
	data, err := os.ReadFile(e.path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &e.postings)
}

// Name implements export.Exporter.
func (e *Exporter) Name() string { return "json" }

// Export appends postings and rewrites the file through a temporary file.
func (e *Exporter) Export(_ context.Context, postings []api.Posting) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	all := append(e.postings, postings...)
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("creating json directory: %w", err)
	}
	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing json file: %w", err)
	}
	e.postings = all

	e.logger.Debug("exported postings", "batch_count", len(postings), "total_count", len(all))
	return nil
}

// Count returns the number of postings in the file.
func (e *Exporter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.postings)
}
