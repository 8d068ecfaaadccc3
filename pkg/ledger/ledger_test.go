package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/beanbill/pkg/api"
)

func posting(payee, amount string) api.Posting {
	return api.Posting{
		Transaction: api.Transaction{
			Date:   time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC),
			Payee:  payee,
			Amount: decimal.RequireFromString(amount),
		},
		Expense: "Expenses:Food",
		Asset:   "Assets:Bank:CMB",
	}
}

func TestFormatEntry(t *testing.T) {
	tests := []struct {
		name     string
		posting  api.Posting
		currency string
		want     string
	}{
		{
			name:     "plain",
			posting:  posting("星巴克", "35"),
			currency: "CNY",
			want:     "2025-12-03 * \"星巴克\"\n  Expenses:Food  35.00 CNY\n  Assets:Bank:CMB\n\n",
		},
		{
			name:     "quotes doubled",
			posting:  posting(`店 "A"`, "12.5"),
			currency: "",
			want:     "2025-12-03 * \"店 \"\"A\"\"\"\n  Expenses:Food  12.50 CNY\n  Assets:Bank:CMB\n\n",
		},
		{
			name:     "sub-cent precision kept",
			posting:  posting("油站", "100.125"),
			currency: "USD",
			want:     "2025-12-03 * \"油站\"\n  Expenses:Food  100.125 USD\n  Assets:Bank:CMB\n\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatEntry(tc.posting, tc.currency); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWriter_AppendMonthAndInclude(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(Config{Root: root}, nil)

	rel, err := w.AppendMonth("202512", []string{"a\n", "b\n"})
	if err != nil {
		t.Fatalf("AppendMonth: %v", err)
	}
	if rel != "data/202512.beancount" {
		t.Errorf("rel: got %q, want data/202512.beancount", rel)
	}
	if _, err := w.AppendMonth("202512", []string{"c\n"}); err != nil {
		t.Fatalf("AppendMonth again: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "data", "202512.beancount"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a\nb\nc\n" {
		t.Errorf("segment: got %q, want appended entries", data)
	}

	for i := range 3 {
		added, err := w.EnsureInclude(rel)
		if err != nil {
			t.Fatalf("EnsureInclude: %v", err)
		}
		if added != (i == 0) {
			t.Errorf("call %d: added=%v", i, added)
		}
	}
	main, err := os.ReadFile(w.MainPath())
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(main), `include "data/202512.beancount"`); n != 1 {
		t.Errorf("include lines: got %d, want 1", n)
	}

	if _, err := w.AppendMonth("2025-12", nil); err == nil {
		t.Error("invalid month: expected error")
	}
}

func TestWriter_EnsureIncludeMissingNewline(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(Config{Root: root, MainFile: "main.beancount", MonthlyDir: "data"}, nil)
	if err := os.WriteFile(w.MainPath(), []byte(`option "title" "x"`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := w.EnsureInclude("data/202601.beancount"); err != nil {
		t.Fatalf("EnsureInclude: %v", err)
	}
	main, _ := os.ReadFile(w.MainPath())
	want := "option \"title\" \"x\"\ninclude \"data/202601.beancount\"\n"
	if string(main) != want {
		t.Errorf("main: got %q, want %q", main, want)
	}
}

func TestBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.beancount")
	opts := BootstrapOptions{
		Title:    "Home",
		OpenDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Assets:   []string{"Assets:Bank:CMB", "Assets:Alipay", "Assets:Bank:CMB"},
		Accounts: []string{"Expenses:Food", "Expenses:Transport"},
		Balances: map[string]decimal.Decimal{
			"Assets:Bank:CMB": decimal.RequireFromString("1000"),
			"Assets:Alipay":   decimal.Zero,
		},
	}

	res, err := Bootstrap(path, opts)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if !res.Created {
		t.Error("expected file to be created")
	}
	if len(res.Opened) != 5 {
		t.Errorf("opened: got %v, want 5 accounts", res.Opened)
	}
	if len(res.Balances) != 1 || res.Balances[0] != "Assets:Bank:CMB" {
		t.Errorf("balances: got %v", res.Balances)
	}

	data, _ := os.ReadFile(path)
	for _, want := range []string{
		`option "title" "Home"`,
		`option "operating_currency" "CNY"`,
		"2026-01-01 open Equity:Opening-Balances\n",
		"2026-01-01 open Assets:Alipay\n",
		"2026-01-01 open Expenses:Transport\n",
		"2026-01-01 * \"Opening Balance\"\n  Assets:Bank:CMB  1000.00 CNY\n  Equity:Opening-Balances\n",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("ledger missing %q:\n%s", want, data)
		}
	}

	opts.Accounts = append(opts.Accounts, "Expenses:Shopping")
	res, err = Bootstrap(path, opts)
	if err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	if res.Created || len(res.Opened) != 1 || len(res.Balances) != 0 {
		t.Errorf("second run: got %+v, want only Expenses:Shopping opened", res)
	}
}
