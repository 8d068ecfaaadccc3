package importer_test

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/importer"
	"github.com/ArionMiles/beanbill/pkg/importer/alipay"
	"github.com/ArionMiles/beanbill/pkg/importer/bank"
	"github.com/ArionMiles/beanbill/pkg/importer/wechat"
)

func newRegistry(t *testing.T) *importer.Registry {
	t.Helper()
	r := importer.NewRegistry(nil)
	for _, imp := range []api.Importer{
		alipay.New(importer.Options{}),
		wechat.New(importer.Options{}),
		bank.New(importer.Options{}),
	} {
		if err := r.Register(imp); err != nil {
			t.Fatalf("Register(%s): %v", imp.Name(), err)
		}
	}
	return r
}

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

func TestMatch_FilenameBeatsContent(t *testing.T) {
	// The header also satisfies the WeChat content check, which runs first
	// in registration order.
	rows := [][]any{
		{"交易时间", "交易金额", "对方户名", "摘要"},
		{"2026-01-15", "-128.50", "中国石化", "加油"},
	}

	tests := []struct {
		name       string
		file       string
		want       string
		wantSource api.Source
	}{
		{"bank keyword", "招商银行_2026.xlsx", bank.Name, api.SourceBank},
		{"wechat keyword", "微信支付账单.xlsx", wechat.Name, api.SourceWeChat},
		{"content only", "export_2026.xlsx", wechat.Name, api.SourceWeChat},
	}

	r := newRegistry(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeXLSX(t, tc.file, rows)
			imp, err := r.Match(path)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if imp.Name() != tc.want {
				t.Fatalf("importer: got %s, want %s", imp.Name(), tc.want)
			}

			txs, err := imp.Extract(path)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(txs) != 1 {
				t.Fatalf("transactions: got %d, want 1", len(txs))
			}
			if txs[0].Source != tc.wantSource {
				t.Errorf("source: got %s, want %s", txs[0].Source, tc.wantSource)
			}
		})
	}
}

func TestMatch_FilenameDoesNotOpenFile(t *testing.T) {
	// The file does not exist, so only a filename match can succeed.
	path := filepath.Join(t.TempDir(), "建设银行流水.pdf")
	imp, err := newRegistry(t).Match(path)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if imp.Name() != bank.Name {
		t.Errorf("importer: got %s, want %s", imp.Name(), bank.Name)
	}
}
