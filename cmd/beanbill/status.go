package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ArionMiles/beanbill/pkg/cache"
	"github.com/ArionMiles/beanbill/pkg/client"
	"github.com/ArionMiles/beanbill/pkg/config"
)

// checker prints one status line per check and remembers failures.
type checker struct {
	allGood bool
}

func (c *checker) ok(label, format string, args ...any) {
	fmt.Printf("%s: %s %s\n", label, color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func (c *checker) warn(label, format string, args ...any) {
	fmt.Printf("%s: %s %s\n", label, color.YellowString("⚠"), fmt.Sprintf(format, args...))
}

func (c *checker) fail(label, format string, args ...any) {
	fmt.Printf("%s: %s %s\n", label, color.RedString("✗"), fmt.Sprintf(format, args...))
	c.allGood = false
}

// runStatus checks the configuration and everything an import depends on.
func runStatus(args []string) error {
	fs, cf := newFlagSet("status")
	_ = fs.Parse(args)

	fmt.Println("=== beanbill status ===")
	fmt.Println()

	c := &checker{allGood: true}
	cfg := c.checkConfig(cf.configPath)
	if cfg != nil {
		c.checkImporters(cfg)
		c.checkLedger(cfg)
		c.checkCache(cfg)
		c.checkAccounts(cfg)
		c.checkAI(cfg)
		c.checkExports(cfg)
	}

	fmt.Println()
	if c.allGood {
		fmt.Println("Status: " + color.GreenString("✓ Ready to import"))
		fmt.Println()
		fmt.Println("Run 'beanbill batch' to import every bill in the bills directory.")
	} else {
		fmt.Println("Status: " + color.RedString("✗ Configuration issues detected"))
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'beanbill status' again.")
	}
	return nil
}

func (c *checker) checkConfig(path string) *config.Config {
	label := fmt.Sprintf("Config file (%s)", path)
	cfg, err := config.Load(path)
	if err != nil {
		c.fail(label, "%v", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		c.fail(label, "invalid: %v", err)
		return cfg
	}
	c.ok(label, "Valid")
	return cfg
}

func (c *checker) checkImporters(cfg *config.Config) {
	registry, err := newRegistry(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		c.fail("Importers", "%v", err)
		return
	}
	var names []string
	for _, imp := range registry.List() {
		names = append(names, imp.Name())
	}
	c.ok("Importers", "%s (%s)", strings.Join(names, ", "), strings.Join(registry.Extensions(), " "))
}

func (c *checker) checkLedger(cfg *config.Config) {
	path := cfg.MainLedgerPath()
	label := fmt.Sprintf("Main ledger (%s)", path)
	if _, err := os.Stat(path); err != nil {
		c.warn(label, "Not found (run 'beanbill init', or it is created on first import)")
		return
	}
	segments, _ := filepath.Glob(filepath.Join(cfg.Ledger.Root, cfg.Ledger.MonthlyDir, "*.beancount"))
	c.ok(label, "Found, %d monthly file(s)", len(segments))
}

func (c *checker) checkCache(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	label := fmt.Sprintf("Cache (%s)", cfg.Cache.Backend)
	store, closer, err := cache.OpenStore(ctx, cache.Options{
		Backend: cfg.Cache.Backend,
		Path:    cfg.Cache.Path,
		DSN:     cfg.Cache.Postgres.DSN,
	})
	if err != nil {
		c.fail(label, "%v", err)
		return
	}
	defer closer.Close()

	entries, err := store.Load(ctx)
	if err != nil {
		c.warn(label, "%s unreadable, imports start with an empty cache: %v", store.Describe(), err)
		return
	}
	c.ok(label, "%s, %d learned mapping(s)", store.Describe(), len(entries))
}

func (c *checker) checkAccounts(cfg *config.Config) {
	if len(cfg.Accounts) == 0 {
		c.fail("Allowed accounts", "None configured")
		return
	}
	c.ok("Allowed accounts", "%d account(s), %d asset rule(s)", len(cfg.Accounts), len(cfg.AssetMapping))
}

func (c *checker) checkAI(cfg *config.Config) {
	label := fmt.Sprintf("AI provider (%s, %s)", cfg.AI.Provider, cfg.AI.Model)
	if cfg.AI.APIKey == "" {
		c.fail(label, "No API key (set ai.api_key or BEANBILL_AI__API_KEY)")
		return
	}
	if cfg.AI.APIBase != "" {
		c.ok(label, "API key set, endpoint %s", cfg.AI.APIBase)
		return
	}
	c.ok(label, "API key set")
}

func (c *checker) checkExports(cfg *config.Config) {
	if p := cfg.Export.CSV.Path; p != "" {
		c.ok("CSV export", "%s", p)
	}
	if p := cfg.Export.JSON.Path; p != "" {
		c.ok("JSON export", "%s", p)
	}

	s := cfg.Export.Sheets
	if !s.Enabled() {
		if cfg.Export.CSV.Path == "" && cfg.Export.JSON.Path == "" {
			c.ok("Exports", "None configured")
		}
		return
	}
	auth := client.New(client.Config{SecretsFile: s.SecretsFile, TokenFile: s.TokenFile}, nil)
	if _, err := os.Stat(auth.SecretsFile()); err != nil {
		c.fail("Sheets export", "Credentials %s not found", auth.SecretsFile())
		return
	}
	tok, err := client.TokenFromFile(auth.TokenFile())
	if err != nil {
		c.fail("Sheets export", "No token at %s (run 'beanbill setup')", auth.TokenFile())
		return
	}
	if tok.Expiry.Before(time.Now()) {
		c.warn("Sheets export", "Token expired (will refresh on next run)")
		return
	}
	c.ok("Sheets export", "Token valid (expires: %s)", tok.Expiry.Format(time.RFC3339))
}
