package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OpeningBalancesAccount is the equity account opening balances post against.
const OpeningBalancesAccount = "Equity:Opening-Balances"

// BootstrapOptions describes the accounts to open.
type BootstrapOptions struct {
	Title    string
	Currency string
	OpenDate time.Time
	// Assets are the asset and liability accounts from the asset mapping.
	Assets []string
	// Accounts are the expense accounts the classifier may assign.
	Accounts []string
	// Balances holds opening balances per asset account. Zero balances are
	// not written.
	Balances map[string]decimal.Decimal
}

// BootstrapResult reports what Bootstrap added.
type BootstrapResult struct {
	Created  bool
	Opened   []string
	Balances []string
}

// Bootstrap creates the ledger at path if needed and appends an open
// directive for every account not opened yet, plus opening balance entries
// for assets that have none. Running it again only adds what is missing.
func Bootstrap(path string, opts BootstrapOptions) (BootstrapResult, error) {
	var res BootstrapResult
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.OpenDate.IsZero() {
		opts.OpenDate = time.Now()
	}
	date := opts.OpenDate.Format("2006-01-02")

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.Created = true
	case err != nil:
		return res, fmt.Errorf("reading ledger: %w", err)
	}
	existing := string(content)

	var sb strings.Builder
	if res.Created {
		title := opts.Title
		if title == "" {
			title = "Personal Ledger"
		}
		fmt.Fprintf(&sb, "option \"title\" %q\n", title)
		fmt.Fprintf(&sb, "option \"operating_currency\" %q\n", opts.Currency)
	}

	assets := sortedSet(opts.Assets)
	accounts := append([]string{OpeningBalancesAccount}, assets...)
	accounts = append(accounts, opts.Accounts...)

	var opens strings.Builder
	seen := make(map[string]bool)
	for _, acct := range accounts {
		acct = strings.TrimSpace(acct)
		if acct == "" || seen[acct] || strings.Contains(existing, "open "+acct+"\n") {
			continue
		}
		seen[acct] = true
		fmt.Fprintf(&opens, "%s open %s\n", date, acct)
		res.Opened = append(res.Opened, acct)
	}
	if opens.Len() > 0 {
		sb.WriteString("\n; accounts\n")
		sb.WriteString(opens.String())
	}

	var balances strings.Builder
	for _, acct := range assets {
		amount, ok := opts.Balances[acct]
		if !ok || amount.IsZero() || hasOpeningBalance(existing, acct) {
			continue
		}
		fmt.Fprintf(&balances, "%s * \"Opening Balance\"\n  %s  %s %s\n  %s\n\n",
			date, acct, amount.StringFixed(2), opts.Currency, OpeningBalancesAccount)
		res.Balances = append(res.Balances, acct)
	}
	if balances.Len() > 0 {
		sb.WriteString("\n; opening balances\n")
		sb.WriteString(balances.String())
	}

	if sb.Len() == 0 {
		return res, nil
	}
	if len(existing) > 0 && !strings.HasSuffix(existing, "\n") {
		existing += "\n"
		if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
			return res, fmt.Errorf("writing ledger: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("creating ledger directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return res, fmt.Errorf("opening ledger: %w", err)
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		_ = f.Close()
		return res, fmt.Errorf("writing ledger: %w", err)
	}
	return res, f.Close()
}

func hasOpeningBalance(content, account string) bool {
	return strings.Contains(content, "* \"Opening Balance\"\n  "+account+" ")
}

func sortedSet(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
