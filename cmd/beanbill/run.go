package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/beanbill/pkg/ai"
	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/cache"
	"github.com/ArionMiles/beanbill/pkg/classifier"
	"github.com/ArionMiles/beanbill/pkg/client"
	"github.com/ArionMiles/beanbill/pkg/config"
	"github.com/ArionMiles/beanbill/pkg/export"
	csvexport "github.com/ArionMiles/beanbill/pkg/export/csv"
	jsonexport "github.com/ArionMiles/beanbill/pkg/export/json"
	sheetsexport "github.com/ArionMiles/beanbill/pkg/export/sheets"
	"github.com/ArionMiles/beanbill/pkg/importer"
	"github.com/ArionMiles/beanbill/pkg/importer/alipay"
	"github.com/ArionMiles/beanbill/pkg/importer/bank"
	"github.com/ArionMiles/beanbill/pkg/importer/wechat"
	"github.com/ArionMiles/beanbill/pkg/ledger"
	"github.com/ArionMiles/beanbill/pkg/orchestrator"
)

func runImport(args []string) error {
	fs, cf := newFlagSet("import")
	yes := fs.Bool("yes", false, "accept every AI suggestion without prompting")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("import takes exactly one bill file")
	}

	cfg, logger, logCloser, err := loadConfig(cf.configPath)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	confirmer, onInterrupt := newConfirmer(*yes, logger)
	ctx, cancel := signalContext(logger, onInterrupt)
	defer cancel()

	pipeline, cleanup, err := buildPipeline(ctx, cfg, logger, confirmer)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := pipeline.ProcessFile(ctx, fs.Arg(0))
	printResult(res, err)
	if err != nil {
		return fmt.Errorf("importing %s: %w", fs.Arg(0), err)
	}
	return nil
}

func runBatch(args []string) error {
	fs, cf := newFlagSet("batch")
	yes := fs.Bool("yes", false, "accept every AI suggestion without prompting")
	dir := fs.String("dir", "", "bills directory (defaults to bills_dir from the config)")
	_ = fs.Parse(args)

	cfg, logger, logCloser, err := loadConfig(cf.configPath)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	paths := fs.Args()
	if len(paths) == 0 {
		billsDir := *dir
		if billsDir == "" {
			billsDir = cfg.BillsDir
		}
		if paths, err = orchestrator.ListBills(billsDir); err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Printf("No bill files in %s\n", billsDir)
			return nil
		}
	}

	confirmer, onInterrupt := newConfirmer(*yes, logger)
	ctx, cancel := signalContext(logger, onInterrupt)
	defer cancel()

	pipeline, cleanup, err := buildPipeline(ctx, cfg, logger, confirmer)
	if err != nil {
		return err
	}
	defer cleanup()

	sum := pipeline.ProcessBatch(ctx, paths)

	fmt.Println()
	fmt.Println("=== Batch Summary ===")
	for _, o := range sum.Outcomes {
		printResult(o.FileResult, o.Err)
	}
	for _, p := range sum.Pending {
		fmt.Printf("%s %s (not processed)\n", color.YellowString("-"), filepath.Base(p))
	}
	fmt.Printf("\n%d/%d files succeeded, %d entries imported\n", sum.Succeeded(), len(paths), sum.Imported())

	if !sum.OK() {
		return fmt.Errorf("%d file(s) failed, %d not processed", len(sum.Failed()), len(sum.Pending))
	}
	return nil
}

func runList(args []string) error {
	fs, cf := newFlagSet("list")
	dir := fs.String("dir", "", "bills directory (defaults to bills_dir from the config)")
	_ = fs.Parse(args)

	cfg, err := config.Load(cf.configPath)
	if err != nil {
		d := config.Default()
		cfg = &d
	}
	billsDir := *dir
	if billsDir == "" {
		billsDir = cfg.BillsDir
	}

	registry, err := newRegistry(cfg, slog.Default())
	if err != nil {
		return err
	}
	supported := registry.Extensions()

	paths, err := orchestrator.ListBills(billsDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("No bill files in %s\n", billsDir)
		return nil
	}
	fmt.Printf("%d bill file(s) in %s:\n", len(paths), billsDir)
	for _, p := range paths {
		size := ""
		if info, err := os.Stat(p); err == nil {
			size = fmt.Sprintf(" (%.1f KB)", float64(info.Size())/1024)
		}
		note := ""
		if ext := strings.ToLower(filepath.Ext(p)); !slices.Contains(supported, ext) {
			note = color.YellowString(" no importer reads %s files", ext)
		}
		fmt.Printf("  %s%s%s\n", filepath.Base(p), size, note)
	}
	return nil
}

func printResult(res orchestrator.FileResult, err error) {
	name := filepath.Base(res.Path)
	if err != nil {
		fmt.Printf("%s %s: %v\n", color.RedString("✗"), name, err)
		return
	}
	fmt.Printf("%s %s: %d/%d imported via %s into %v\n",
		color.GreenString("✓"), name, res.Imported, res.Parsed, res.Importer, res.Months)
}

// newRegistry registers the importers in detection order.
func newRegistry(cfg *config.Config, logger *slog.Logger) (*importer.Registry, error) {
	opts := importer.Options{MaxFileSize: cfg.MaxFileSize, Logger: logger}
	registry := importer.NewRegistry(logger.With("component", "registry"))
	for _, imp := range []api.Importer{alipay.New(opts), wechat.New(opts), bank.New(opts)} {
		if err := registry.Register(imp); err != nil {
			return nil, fmt.Errorf("registering %s importer: %w", imp.Name(), err)
		}
	}
	return registry, nil
}

// newConfirmer returns the confirmer for the run and, for the terminal
// confirmer, the hook that lets SIGINT resolve a waiting prompt.
func newConfirmer(yes bool, logger *slog.Logger) (classifier.Confirmer, func() bool) {
	if yes {
		return classifier.AcceptConfirmer{}, nil
	}
	t := classifier.NewTerminalConfirmer(os.Stdin, os.Stdout, logger)
	return t, t.Interrupt
}

// buildPipeline wires the importers, the AI provider, the cache backend and
// the exporters. cleanup closes the exporters.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, confirmer classifier.Confirmer) (*orchestrator.Pipeline, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	completer, err := ai.New(ctx, ai.Config{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.APIBase,
		Timeout:  cfg.AI.Timeout,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating ai client: %w", err)
	}

	classifierCfg := classifier.Config{
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		SaveEach:    cfg.Cache.SaveEach,
	}
	newSession := func(ctx context.Context) (*orchestrator.Session, error) {
		store, closer := cache.OpenStoreOrMemory(ctx, cache.Options{
			Backend: cfg.Cache.Backend,
			Path:    cfg.Cache.Path,
			DSN:     cfg.Cache.Postgres.DSN,
		}, logger)
		c := cache.New(ctx, store, logger)
		return &orchestrator.Session{
			Classifier: classifier.New(classifierCfg, completer, c, confirmer, logger),
			Cache:      c,
			Close:      closer.Close,
		}, nil
	}

	exporters, cleanup := buildExporters(ctx, cfg, logger)

	pipeline := orchestrator.New(orchestrator.Options{
		Registry: registry,
		Ledger: ledger.NewWriter(ledger.Config{
			Root:       cfg.Ledger.Root,
			MainFile:   cfg.Ledger.MainFile,
			MonthlyDir: cfg.Ledger.MonthlyDir,
		}, logger),
		Assets:     orchestrator.NewAssetMapper(cfg.AssetMapping),
		Accounts:   cfg.Accounts,
		Currency:   cfg.Ledger.Currency,
		NewSession: newSession,
		Exporters:  exporters,
	}, logger)
	return pipeline, cleanup, nil
}

// buildExporters sets up the configured exports. An export that cannot be
// set up is logged and left out.
func buildExporters(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]export.Exporter, func()) {
	var exporters []export.Exporter
	var closers []func() error

	if cfg.Export.CSV.Path != "" {
		e, err := csvexport.New(csvexport.Config{Path: cfg.Export.CSV.Path}, logger)
		if err != nil {
			logger.Warn("csv export disabled", "error", err)
		} else {
			exporters = append(exporters, e)
			closers = append(closers, e.Close)
		}
	}

	if cfg.Export.JSON.Path != "" {
		e, err := jsonexport.New(jsonexport.Config{Path: cfg.Export.JSON.Path}, logger)
		if err != nil {
			logger.Warn("json export disabled", "error", err)
		} else {
			exporters = append(exporters, e)
		}
	}

	if s := cfg.Export.Sheets; s.Enabled() {
		auth := client.New(client.Config{SecretsFile: s.SecretsFile, TokenFile: s.TokenFile}, logger)
		httpClient, err := auth.Client(ctx, sheets.SpreadsheetsScope)
		if err == nil {
			var e *sheetsexport.Exporter
			e, err = sheetsexport.New(ctx, httpClient, sheetsexport.Config{
				SpreadsheetID: s.ID,
				Title:         s.Title,
				SheetName:     s.Name,
			}, logger)
			if err == nil {
				exporters = append(exporters, e)
			}
		}
		if err != nil {
			logger.Warn("sheets export disabled (run 'beanbill setup')", "error", err)
		}
	}

	return exporters, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("closing exporter", "error", err)
			}
		}
	}
}
