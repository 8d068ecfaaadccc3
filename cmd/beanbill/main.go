// Command beanbill imports Alipay, WeChat and bank bills into a beancount
// ledger, classifying each transaction into an expense account.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArionMiles/beanbill/pkg/config"
	"github.com/ArionMiles/beanbill/pkg/logging"
)

const usage = `beanbill imports bill exports into a beancount ledger.

Usage:
  beanbill import [-config path] [-yes] FILE
  beanbill batch  [-config path] [-yes] [-dir bills] [FILE...]
  beanbill list   [-config path] [-dir bills]
  beanbill init   [-config path] [-yes]
  beanbill status [-config path]
  beanbill setup  [-config path] [-force]

Environment variables prefixed with BEANBILL_ override config keys,
e.g. BEANBILL_AI__API_KEY sets ai.api_key.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "import":
		err = runImport(args)
	case "batch":
		err = runBatch(args)
	case "list":
		err = runList(args)
	case "init":
		err = runInit(args)
	case "status":
		err = runStatus(args)
	case "setup":
		err = runSetup(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags every command shares.
type commonFlags struct {
	configPath string
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", config.DefaultPath, "path to the config file (.yaml or .json)")
	return fs, cf
}

// loadConfig loads the config and installs the configured logger.
func loadConfig(path string) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := logging.FromSettings(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closer, nil
}

// signalContext is canceled on SIGINT or SIGTERM. A SIGINT that
// onInterrupt reports as handled was spent on a waiting prompt and leaves
// the run going.
func signalContext(logger *slog.Logger, onInterrupt func() bool) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case sig := <-sigChan:
				if sig == syscall.SIGINT && onInterrupt != nil && onInterrupt() {
					logger.Info("interrupt during confirmation, accepting suggestion")
					continue
				}
				logger.Info("received shutdown signal", "signal", sig)
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return ctx, cancel
}
