package bank

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/importer"
)

func writeXLSX(t *testing.T, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

var statementRows = [][]any{
	{"招商银行交易流水"},
	{"交易日期", "交易金额", "对方户名", "摘要", "账户"},
	{"2026-01-15", "-128.50", "中国石化", "加油", "6225********1234"},
	{"2026/01/16", "3,000.00", "", "工资", ""},
	{"2026-01-17", "", "空行", "", ""},
	{"1999-12-31", "10.00", "旧交易", "", ""},
}

func TestExtractXLSX(t *testing.T) {
	path := writeXLSX(t, "statement.xlsx", statementRows)
	txs, err := New(importer.Options{}).Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("transactions: got %d, want 2", len(txs))
	}

	first := txs[0]
	if want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC); !first.Date.Equal(want) {
		t.Errorf("date: got %v, want %v", first.Date, want)
	}
	if !first.Amount.Equal(decimal.RequireFromString("128.5")) {
		t.Errorf("amount: got %s, want 128.5", first.Amount)
	}
	if first.Payee != "中国石化" || first.Note != "加油" {
		t.Errorf("payee/note: got %q/%q", first.Payee, first.Note)
	}
	if first.RawAccount != "6225********1234" {
		t.Errorf("account: got %q", first.RawAccount)
	}
	if first.RawCategory != defaultCategory {
		t.Errorf("category: got %q, want %s", first.RawCategory, defaultCategory)
	}
	if first.Source != api.SourceBank {
		t.Errorf("source: got %s, want bank", first.Source)
	}

	second := txs[1]
	if second.Payee != defaultPayee || second.RawAccount != defaultAccount {
		t.Errorf("defaults: got payee=%q account=%q", second.Payee, second.RawAccount)
	}
	if !second.Amount.Equal(decimal.RequireFromString("3000")) {
		t.Errorf("amount: got %s, want 3000", second.Amount)
	}
}

func TestExtractXLSX_NoHeader(t *testing.T) {
	path := writeXLSX(t, "bank.xlsx", [][]any{{"名称", "值"}, {"a", "b"}})
	_, err := New(importer.Options{}).Extract(path)
	if !errors.Is(err, api.ErrFormat) {
		t.Errorf("got %v, want format error", err)
	}
}

func TestSupports(t *testing.T) {
	imp := New(importer.Options{})

	if !imp.Supports(filepath.Join(t.TempDir(), "招商银行_2026.xlsx")) {
		t.Error("filename keyword: expected match without reading the file")
	}
	if !imp.Supports(writeXLSX(t, "export.xlsx", statementRows)) {
		t.Error("xlsx columns: expected match")
	}
	if imp.Supports(writeXLSX(t, "export.xlsx", [][]any{{"名称", "值"}})) {
		t.Error("unrelated workbook: expected no match")
	}
	if imp.Supports(filepath.Join(t.TempDir(), "bank.csv")) {
		t.Error("csv: expected no match")
	}

	garbage := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(garbage, []byte("not a pdf"), 0o600); err != nil {
		t.Fatal(err)
	}
	if imp.Supports(garbage) {
		t.Error("unreadable pdf: expected no match")
	}
}

func TestExtractPDF_Unreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := New(importer.Options{}).Extract(path)
	if !errors.Is(err, api.ErrFormat) {
		t.Errorf("got %v, want format error", err)
	}
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		ok     bool
		date   string
		amount string
		payee  string
	}{
		{"dashed date", "2026-01-15 星巴克咖啡 35.00 1,234.56", true, "2026-01-15", "35.00", "星巴克咖啡"},
		{"chinese date", "2026年1月5日 美团外卖 -42.80", true, "2026年1月5日", "-42.80", "美团外卖"},
		{"thousands", "2026/01/20 房租 3,500.00", true, "2026/01/20", "3,500.00", "房租"},
		{"prefers decimal over serial", "2026-01-15 POS 6225 消费 88.00", true, "2026-01-15", "88.00", "POS 6225 消费"},
		{"integer fallback", "2026-01-15 转账 200", true, "2026-01-15", "200", "转账"},
		{"no payee", "2026-01-15 12.00", true, "2026-01-15", "12.00", ""},
		{"no date", "期末余额 1,234.56", false, "", "", ""},
		{"no amount", "2026-01-15 对账单", false, "", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields, ok := splitLine(tc.line)
			if ok != tc.ok {
				t.Fatalf("ok: got %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if fields[fieldDate] != tc.date {
				t.Errorf("date: got %q, want %q", fields[fieldDate], tc.date)
			}
			if fields[fieldAmount] != tc.amount {
				t.Errorf("amount: got %q, want %q", fields[fieldAmount], tc.amount)
			}
			if got := importer.NewRecord(1, fields).Get(fieldPayee); got != tc.payee {
				t.Errorf("payee: got %q, want %q", got, tc.payee)
			}
		})
	}
}

func TestConvertPDFLines(t *testing.T) {
	lines := []pdfLine{
		{page: 1, text: "招商银行账户交易明细"},
		{page: 1, text: "2026-01-15 星巴克 35.00 1,000.00"},
		{page: 2, text: "2026年1月16日 12.50"},
		{page: 2, text: "2099-01-01 未来交易 9.00"},
	}

	imp := New(importer.Options{})
	txs, stats := importer.ConvertRecords(lineRecords(lines), imp.opts, imp.convertLine)
	if len(txs) != 2 {
		t.Fatalf("transactions: got %d, want 2", len(txs))
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped: got %d, want 1", stats.Skipped)
	}

	if txs[0].Payee != "星巴克" || txs[0].Note != "PDF page 1" {
		t.Errorf("first: got payee=%q note=%q", txs[0].Payee, txs[0].Note)
	}
	if txs[1].Payee != defaultPayee || txs[1].Note != "PDF page 2" {
		t.Errorf("second: got payee=%q note=%q", txs[1].Payee, txs[1].Note)
	}
	if want := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC); !txs[1].Date.Equal(want) {
		t.Errorf("date: got %v, want %v", txs[1].Date, want)
	}
	if !txs[1].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("amount: got %s, want 12.5", txs[1].Amount)
	}
}
