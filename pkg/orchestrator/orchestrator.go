// Package orchestrator drives bill files through detection, extraction,
// classification and ledger output.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/cache"
	"github.com/ArionMiles/beanbill/pkg/classifier"
	"github.com/ArionMiles/beanbill/pkg/export"
	"github.com/ArionMiles/beanbill/pkg/importer"
	"github.com/ArionMiles/beanbill/pkg/ledger"
)

// ErrNothingImported is returned when a file produced no ledger entries.
var ErrNothingImported = errors.New("no entries imported")

// BillExtensions are the file types ListBills picks up.
var BillExtensions = []string{".csv", ".xlsx", ".xls", ".pdf"}

// Session is the classification state for one file: a classifier bound to a
// freshly loaded cache.
type Session struct {
	Classifier *classifier.Classifier
	Cache      *cache.Cache
	// Close releases the cache backend. Optional.
	Close func() error
}

// SessionFunc opens a Session.
type SessionFunc func(ctx context.Context) (*Session, error)

// Options wires the pipeline.
type Options struct {
	Registry   *importer.Registry
	Ledger     *ledger.Writer
	Assets     *AssetMapper
	Accounts   []string
	Currency   string
	NewSession SessionFunc
	Exporters  []export.Exporter
}

// Pipeline imports bill files into the ledger.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// New creates a pipeline.
func New(opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Assets == nil {
		opts.Assets = NewAssetMapper(nil)
	}
	if opts.Currency == "" {
		opts.Currency = ledger.DefaultCurrency
	}
	return &Pipeline{opts: opts, logger: logger.With("component", "orchestrator")}
}

// FileResult reports what happened to one file.
type FileResult struct {
	Path     string
	Importer string
	Parsed   int
	Imported int
	Skipped  int
	// Months lists the segments written, in order.
	Months []string
}

// ProcessFile imports one bill. Entries are grouped by month and appended to
// the monthly segments, each included in the main ledger once. The cache is
// saved once per file, also when classification aborts part way. The file
// succeeds when at least one entry was written.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{Path: path}
	logger := p.logger.With("run_id", uuid.NewString(), "file", filepath.Base(path))

	imp, err := p.opts.Registry.Match(path)
	if err != nil {
		logger.Error("no importer for file", "error", err)
		return res, err
	}
	res.Importer = imp.Name()
	logger = logger.With("importer", imp.Name())

	txs, err := imp.Extract(path)
	if err != nil {
		logger.Error("extraction failed", "error", err)
		return res, fmt.Errorf("extracting %s: %w", path, err)
	}
	res.Parsed = len(txs)
	logger.Info("extracted transactions", "count", len(txs))
	if len(txs) == 0 {
		return res, ErrNothingImported
	}

	session, err := p.opts.NewSession(ctx)
	if err != nil {
		return res, fmt.Errorf("opening classification session: %w", err)
	}
	if session.Close != nil {
		defer func() {
			if err := session.Close(); err != nil {
				logger.Warn("closing cache backend", "error", err)
			}
		}()
	}

	byMonth := make(map[string][]string)
	var postings []api.Posting
	var abort error
	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			logger.Warn("interrupted, writing what was classified so far", "done", i, "total", len(txs))
			abort = err
			break
		}

		asset := p.opts.Assets.Resolve(tx.RawAccount)
		expense, err := session.Classifier.Classify(ctx, tx, p.opts.Accounts)
		if err != nil {
			if errors.Is(err, api.ErrClassification) {
				logger.Error("classification failed, skipping rest of file",
					"payee", tx.Payee, "done", i, "total", len(txs), "error", err)
				abort = err
				break
			}
			res.Skipped++
			logger.Warn("skipping transaction", "payee", tx.Payee, "error", err)
			continue
		}

		posting := api.Posting{Transaction: tx, Expense: expense, Asset: asset}
		byMonth[tx.Month()] = append(byMonth[tx.Month()], ledger.FormatEntry(posting, p.opts.Currency))
		postings = append(postings, posting)
		res.Imported++
		logger.Debug("classified",
			"n", i+1, "total", len(txs),
			"date", tx.Date.Format("2006-01-02"),
			"payee", tx.Payee,
			"expense", expense,
			"asset", asset)
	}

	var writeErrs []error
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	slices.Sort(months)
	for _, month := range months {
		rel, err := p.opts.Ledger.AppendMonth(month, byMonth[month])
		if err != nil {
			logger.Error("writing month failed", "month", month, "error", err)
			writeErrs = append(writeErrs, err)
			continue
		}
		res.Months = append(res.Months, month)
		if _, err := p.opts.Ledger.EnsureInclude(rel); err != nil {
			logger.Error("updating main ledger failed", "include", rel, "error", err)
			writeErrs = append(writeErrs, err)
		}
	}

	session.Cache.Save(context.WithoutCancel(ctx))

	if len(postings) > 0 {
		for _, exp := range p.opts.Exporters {
			if err := exp.Export(ctx, postings); err != nil {
				logger.Warn("export failed", "exporter", exp.Name(), "error", err)
			}
		}
	}

	stats := session.Classifier.Stats()
	logger.Info("file processed",
		"parsed", res.Parsed,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"months", res.Months,
		"cache_hits", stats.CacheHits,
		"ai_requests", stats.AIRequests,
		"degraded", stats.Degraded,
		"overridden", stats.Overridden,
		"cache_entries", session.Cache.Len())

	switch {
	case abort != nil:
		return res, abort
	case len(writeErrs) > 0:
		return res, errors.Join(writeErrs...)
	case res.Imported == 0:
		return res, ErrNothingImported
	}
	return res, nil
}

// Outcome pairs a file result with its error.
type Outcome struct {
	FileResult
	Err error
}

// Summary reports a batch run.
type Summary struct {
	Outcomes []Outcome
	// Pending lists files not attempted because the run was interrupted.
	Pending []string
}

// Succeeded counts files that imported without error.
func (s Summary) Succeeded() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the paths of files that failed.
func (s Summary) Failed() []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Err != nil {
			out = append(out, o.Path)
		}
	}
	return out
}

// Imported totals the entries written across files.
func (s Summary) Imported() int {
	n := 0
	for _, o := range s.Outcomes {
		n += o.Imported
	}
	return n
}

// OK reports whether every file was attempted and succeeded.
func (s Summary) OK() bool {
	return len(s.Pending) == 0 && len(s.Failed()) == 0
}

// ProcessBatch imports files one after another. A failing file does not stop
// the batch; an interrupt does, between files.
func (p *Pipeline) ProcessBatch(ctx context.Context, paths []string) Summary {
	var sum Summary
	p.logger.Info("starting batch", "files", len(paths))
	for i, path := range paths {
		if ctx.Err() != nil {
			sum.Pending = slices.Clone(paths[i:])
			p.logger.Warn("batch interrupted", "pending", len(sum.Pending))
			break
		}
		res, err := p.ProcessFile(ctx, path)
		sum.Outcomes = append(sum.Outcomes, Outcome{FileResult: res, Err: err})
	}
	p.logger.Info("batch finished",
		"succeeded", sum.Succeeded(),
		"failed", len(sum.Failed()),
		"imported", sum.Imported())
	return sum
}

// ListBills returns the bill files directly inside dir, sorted by name.
func ListBills(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if slices.Contains(BillExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
