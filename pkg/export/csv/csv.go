// Package csv implements an Exporter that appends postings to a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ArionMiles/beanbill/pkg/api"
)

// Header is the first row of a new export file.
var Header = []string{"Date", "Payee", "Amount", "Expense", "Asset", "Category", "Source", "Note"}

// Config holds configuration for the CSV exporter.
type Config struct {
	// Path is the CSV output file. It is created with a header row if missing.
	Path string
}

// Exporter appends postings to a CSV file.
type Exporter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	logger *slog.Logger
}

// New opens the CSV file for appending.
func New(cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv export path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating csv directory: %w", err)
	}

	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}

	e := &Exporter{
		path:   cfg.Path,
		file:   file,
		writer: csv.NewWriter(file),
		logger: logger.With("component", "csv_export"),
	}

	stat, err := file.Stat()
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return nil, fmt.Errorf("stat csv file: %w (close error: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("stat csv file: %w", err)
	}
	if stat.Size() == 0 {
		if err := e.writeRows([][]string{Header}); err != nil {
			if closeErr := file.Close(); closeErr != nil {
				return nil, fmt.Errorf("writing header: %w (close error: %w)", err, closeErr)
			}
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	e.logger.Info("csv export ready", "file", cfg.Path)
	return e, nil
}

// Name implements export.Exporter.
func (e *Exporter) Name() string { return "csv" }

// Export appends one row per posting.
func (e *Exporter) Export(_ context.Context, postings []api.Posting) error {
	rows := make([][]string, 0, len(postings))
	for _, p := range postings {
		rows = append(rows, Row(p))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writeRows(rows); err != nil {
		return err
	}
	e.logger.Debug("exported postings", "count", len(postings))
	return nil
}

func (e *Exporter) writeRows(rows [][]string) error {
	for _, r := range rows {
		if err := e.writer.Write(r); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}
	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Row renders a posting in Header order.
func Row(p api.Posting) []string {
	return []string{
		p.Date.Format("2006-01-02"),
		p.Payee,
		p.Amount.StringFixed(2),
		p.Expense,
		p.Asset,
		p.RawCategory,
		string(p.Source),
		p.Note,
	}
}

// Close closes the file.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.writer.Flush()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}
	return nil
}
