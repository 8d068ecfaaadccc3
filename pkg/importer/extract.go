package importer

import (
	"bytes"
	"io"
	"log/slog"
	"os"

	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/normalize"
)

// Options configures an extractor.
type Options struct {
	// MaxFileSize is the size ceiling in bytes. Zero means normalize.DefaultMaxFileSize.
	MaxFileSize int64
	// Rules are the validation bounds. The zero value means normalize.DefaultRules().
	Rules  normalize.Rules
	Logger *slog.Logger
}

// Normalized fills in defaults and scopes the logger to the importer.
func (o Options) Normalized(name string) Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = normalize.DefaultMaxFileSize
	}
	if o.Rules.MaxAmount.IsZero() {
		o.Rules = normalize.DefaultRules()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With("component", "importer", "importer", name)
	return o
}

// RowFunc converts a record into a transaction. Returning ok=false filters
// the row out silently; returning an error skips it with a warning.
type RowFunc func(rec Record) (tx api.Transaction, ok bool, err error)

// Stats counts what happened to the rows of one file.
type Stats struct {
	Rows     int
	Parsed   int
	Filtered int
	Skipped  int
}

// ConvertRecords runs fn over every record, validates the result and keeps
// the valid transactions. Row failures are logged with the row's line number
// and never abort the loop.
func ConvertRecords(records []Record, opts Options, fn RowFunc) ([]api.Transaction, Stats) {
	var stats Stats
	txs := make([]api.Transaction, 0, len(records))

	for _, rec := range records {
		stats.Rows++

		tx, ok, err := fn(rec)
		if err == nil && ok {
			err = opts.Rules.Validate(tx)
		}
		switch {
		case err != nil:
			stats.Skipped++
			opts.Logger.Warn("skipping row", "line", rec.Line, "error", err)
		case !ok:
			stats.Filtered++
		default:
			stats.Parsed++
			txs = append(txs, tx)
		}
	}

	opts.Logger.Info("extracted transactions",
		"rows", stats.Rows,
		"parsed", stats.Parsed,
		"filtered", stats.Filtered,
		"skipped", stats.Skipped,
	)
	return txs, stats
}

// ReadText checks the size ceiling, then decodes the whole file with the
// candidate encodings.
func ReadText(path string, opts Options, encodings []string) (string, error) {
	if err := normalize.CheckFileSize(path, opts.MaxFileSize); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text, enc, err := Decode(data, encodings)
	if err != nil {
		return "", api.NewFormatError(path, "undecodable text", err)
	}
	opts.Logger.Debug("decoded file", "encoding", enc)
	return text, nil
}

// Prefix returns up to n decoded leading lines of a text file, for content
// sniffing. Files that cannot be read or decoded yield nil.
func Prefix(path string, n int, encodings []string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	// Bill headers sit well inside the first 64 KiB.
	const window = 64 * 1024
	buf := make([]byte, window)
	read, _ := io.ReadFull(f, buf)
	buf = buf[:read]

	// Cut a full window at its last newline so a multi-byte rune is never split.
	if read == window {
		if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
			buf = buf[:i]
		}
	}

	text, _, err := Decode(buf, encodings)
	if err != nil {
		return nil
	}
	lines := SplitLines(text)
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}
