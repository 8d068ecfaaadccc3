package json

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/beanbill/pkg/api"
)

func TestExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postings.json")
	p := api.Posting{
		Transaction: api.Transaction{
			Date:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Payee:  "星巴克",
			Amount: decimal.RequireFromString("35.5"),
		},
		Expense: "Expenses:Food",
		Asset:   "Assets:Alipay",
	}

	e, err := New(Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Export(context.Background(), []api.Posting{p, p}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	reloaded, err := New(Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Count() != 2 {
		t.Fatalf("count: got %d, want 2", reloaded.Count())
	}
	if err := reloaded.Export(context.Background(), []api.Posting{p}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if reloaded.Count() != 3 {
		t.Errorf("count: got %d, want 3", reloaded.Count())
	}
	got := reloaded.postings[0]
	if got.Payee != "星巴克" || !got.Amount.Equal(p.Amount) || got.Expense != "Expenses:Food" || !got.Date.Equal(p.Date) {
		t.Errorf("posting: got %+v, want %+v", got, p)
	}
}

func TestNew_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postings.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{Path: path}, nil); err == nil {
		t.Error("expected error for corrupt file")
	}
}
