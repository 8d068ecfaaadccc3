package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/beanbill/pkg/ledger"
	"github.com/ArionMiles/beanbill/pkg/orchestrator"
)

// runInit writes the main ledger with open directives for every configured
// account and optional opening balances.
func runInit(args []string) error {
	fs, cf := newFlagSet("init")
	yes := fs.Bool("yes", false, "skip the opening balance prompts")
	_ = fs.Parse(args)

	cfg, _, logCloser, err := loadConfig(cf.configPath)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	fmt.Println("=== beanbill init ===")
	fmt.Println()

	assets := orchestrator.NewAssetMapper(cfg.AssetMapping).Accounts()
	assets = append(assets, orchestrator.FallbackAsset)

	balances := map[string]decimal.Decimal{}
	if !*yes {
		fmt.Println("Opening balances (empty for 0):")
		balances, err = promptBalances(os.Stdin, os.Stdout, assets)
		if err != nil {
			return err
		}
		fmt.Println()
	}

	path := cfg.MainLedgerPath()
	res, err := ledger.Bootstrap(path, ledger.BootstrapOptions{
		Title:    cfg.Ledger.Title,
		Currency: cfg.Ledger.Currency,
		Assets:   assets,
		Accounts: cfg.Accounts,
		Balances: balances,
	})
	if err != nil {
		return fmt.Errorf("initializing ledger: %w", err)
	}

	if res.Created {
		fmt.Printf("%s Created %s\n", color.GreenString("✓"), path)
	} else {
		fmt.Printf("%s Updated %s\n", color.GreenString("✓"), path)
	}
	fmt.Printf("  %d account(s) opened, %d opening balance(s) written\n", len(res.Opened), len(res.Balances))
	return nil
}

// promptBalances asks for one balance per asset. Invalid input is asked
// again; empty input or end of input means zero.
func promptBalances(in io.Reader, out io.Writer, assets []string) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(assets))
	scanner := bufio.NewScanner(in)
	for _, acct := range assets {
		for {
			fmt.Fprintf(out, "  %s: ", acct)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, fmt.Errorf("reading input: %w", err)
				}
				fmt.Fprintln(out)
				return balances, nil
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				break
			}
			amount, err := decimal.NewFromString(text)
			if err != nil {
				fmt.Fprintf(out, "  %s\n", color.RedString("not a number: %s", text))
				continue
			}
			balances[acct] = amount
			break
		}
	}
	return balances, nil
}
