// Package ledger renders postings as beancount entries and maintains the
// monthly segment files and the include lines of the main ledger.
package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/beanbill/pkg/api"
)

// DefaultCurrency is the commodity written when none is configured.
const DefaultCurrency = "CNY"

// FormatEntry renders one posting as a beancount transaction block followed
// by a blank line.
func FormatEntry(p api.Posting, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	payee := strings.ReplaceAll(p.Payee, `"`, `""`)
	return fmt.Sprintf("%s * \"%s\"\n  %s  %s %s\n  %s\n\n",
		p.Date.Format("2006-01-02"),
		payee,
		p.Expense,
		formatAmount(p.Amount),
		currency,
		p.Asset,
	)
}

// formatAmount prints cents, or every digit when there are more than two.
func formatAmount(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}

// Config locates the ledger files.
type Config struct {
	// Root is the directory holding the main ledger.
	Root string
	// MainFile is the main ledger name, relative to Root.
	MainFile string
	// MonthlyDir holds the YYYYMM.beancount segments, relative to Root.
	MonthlyDir string
}

// Writer appends entries to month segments and includes them in the main
// ledger.
type Writer struct {
	cfg    Config
	logger *slog.Logger
}

// NewWriter creates a ledger writer.
func NewWriter(cfg Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MainFile == "" {
		cfg.MainFile = "main.beancount"
	}
	if cfg.MonthlyDir == "" {
		cfg.MonthlyDir = "data"
	}
	return &Writer{cfg: cfg, logger: logger.With("component", "ledger")}
}

// MainPath returns the main ledger path.
func (w *Writer) MainPath() string {
	return filepath.Join(w.cfg.Root, w.cfg.MainFile)
}

// MonthPath returns the segment path for month ("YYYYMM").
func (w *Writer) MonthPath(month string) string {
	return filepath.Join(w.cfg.Root, w.cfg.MonthlyDir, month+".beancount")
}

// AppendMonth appends rendered entries to the month's segment, creating it
// as needed. It returns the segment path relative to the main ledger, with
// forward slashes.
func (w *Writer) AppendMonth(month string, entries []string) (string, error) {
	if len(month) != 6 {
		return "", fmt.Errorf("invalid month %q", month)
	}
	path := w.MonthPath(month)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating monthly directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	for _, e := range entries {
		if _, err := f.WriteString(e); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	w.logger.Info("appended entries", "file", path, "count", len(entries))

	rel, err := filepath.Rel(filepath.Dir(w.MainPath()), path)
	if err != nil {
		return "", fmt.Errorf("relative path for %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

// EnsureInclude adds `include "<rel>"` to the main ledger unless that line is
// already present. It reports whether the line was added.
func (w *Writer) EnsureInclude(rel string) (bool, error) {
	path := w.MainPath()
	line := fmt.Sprintf("include %q", rel)

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("reading main ledger: %w", err)
	}
	if HasLine(content, line) {
		return false, nil
	}

	var buf bytes.Buffer
	if len(content) > 0 && content[len(content)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(line)
	buf.WriteByte('\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating ledger directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("opening main ledger: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("writing include: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing main ledger: %w", err)
	}

	w.logger.Info("added include", "file", path, "include", rel)
	return true, nil
}

// HasLine reports whether content holds line, ignoring surrounding spaces.
func HasLine(content []byte, line string) bool {
	for _, l := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
