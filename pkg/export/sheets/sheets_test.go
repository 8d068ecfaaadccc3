package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/option"

	"github.com/ArionMiles/beanbill/pkg/api"
)

// fakeSheets serves the subset of the Sheets API the exporter uses.
type fakeSheets struct {
	mu        sync.Mutex
	rateLimit int
	appends   int
	created   int
	headers   int
	rows      int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/spreadsheets/existing"):
		_, _ = w.Write([]byte(`{"spreadsheetId":"existing","properties":{"title":"Bills"}}`))
	case r.Method == http.MethodGet:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/spreadsheets"):
		f.created++
		_, _ = w.Write([]byte(`{"spreadsheetId":"created","properties":{"title":"beanbill"}}`))
	case r.Method == http.MethodPut:
		f.headers++
		_, _ = w.Write([]byte(`{"spreadsheetId":"created"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		f.appends++
		if f.rateLimit > 0 {
			f.rateLimit--
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.rows += len(body.Values)
		_, _ = w.Write([]byte(`{"spreadsheetId":"existing"}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"unexpected"}}`))
	}
}

func newExporter(t *testing.T, fake *fakeSheets, id string) *Exporter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	e, err := New(context.Background(), srv.Client(), Config{
		SpreadsheetID: id,
		SheetName:     "Bills",
		RetryDelay:    time.Millisecond,
		Options:       []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func postings() []api.Posting {
	p := api.Posting{
		Transaction: api.Transaction{
			Date:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Payee:  "星巴克",
			Amount: decimal.RequireFromString("35"),
		},
		Expense: "Expenses:Food",
		Asset:   "Assets:Alipay",
	}
	return []api.Posting{p, p}
}

func TestExporter_ExistingSpreadsheet(t *testing.T) {
	fake := &fakeSheets{rateLimit: 1}
	e := newExporter(t, fake, "existing")
	if e.SpreadsheetID() != "existing" {
		t.Errorf("spreadsheet: got %s, want existing", e.SpreadsheetID())
	}

	if err := e.Export(context.Background(), postings()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if fake.appends != 2 || fake.rows != 2 {
		t.Errorf("appends %d rows %d, want 2 and 2 (one rate-limited retry)", fake.appends, fake.rows)
	}
	if fake.created != 0 {
		t.Errorf("created: got %d, want 0", fake.created)
	}
}

func TestExporter_CreatesSpreadsheet(t *testing.T) {
	fake := &fakeSheets{}
	e := newExporter(t, fake, "missing")
	if e.SpreadsheetID() != "created" {
		t.Errorf("spreadsheet: got %s, want created", e.SpreadsheetID())
	}
	if fake.created != 1 || fake.headers != 1 {
		t.Errorf("created %d headers %d, want 1 and 1", fake.created, fake.headers)
	}
}

func TestExporter_RateLimitExhausted(t *testing.T) {
	fake := &fakeSheets{rateLimit: 10}
	e := newExporter(t, fake, "existing")
	if err := e.Export(context.Background(), postings()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if fake.appends != DefaultAttempts {
		t.Errorf("appends: got %d, want %d", fake.appends, DefaultAttempts)
	}
}
