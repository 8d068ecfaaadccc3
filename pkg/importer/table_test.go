package importer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDecode(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("交易时间,金额")
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		want    string
		wantEnc string
	}{
		{"utf-8", []byte("交易时间,金额"), "交易时间,金额", EncodingUTF8},
		{"utf-8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, "交易时间"...), "交易时间", EncodingUTF8},
		{"gbk", []byte(gbk), "交易时间,金额", EncodingGBK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, enc, err := Decode(tc.data, nil)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tc.want {
				t.Errorf("text: got %q, want %q", got, tc.want)
			}
			if enc != tc.wantEnc {
				t.Errorf("encoding: got %s, want %s", enc, tc.wantEnc)
			}
		})
	}
}

func TestDecode_NoCandidateFits(t *testing.T) {
	if _, _, err := Decode([]byte{0xff, 0xfe, 0x00}, []string{EncodingUTF8}); err == nil {
		t.Error("expected error for invalid utf-8")
	}
	if _, _, err := Decode([]byte("x"), []string{"latin9"}); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestReadCSVTable(t *testing.T) {
	text := "支付宝交易记录明细查询\n" +
		"账号:[someone@example.com]\n" +
		"交易时间,交易对方,金额,备注,备注\n" +
		"2026-01-15 12:30:00,星巴克,35.00,\"拿铁\n大杯\",dup\n" +
		",,,,\n" +
		"2026-01-16 08:00:00,地铁,4.00,,\n"

	table, err := ReadCSVTable(text, 20, ContainsAny("交易时间"))
	if err != nil {
		t.Fatalf("ReadCSVTable: %v", err)
	}
	if table.HeaderLine != 3 {
		t.Errorf("header line: got %d, want 3", table.HeaderLine)
	}

	records := table.Records()
	if len(records) != 2 {
		t.Fatalf("records: got %d, want 2", len(records))
	}
	first := records[0]
	if first.Line != 4 {
		t.Errorf("line: got %d, want 4", first.Line)
	}
	if got := first.Get("交易对方"); got != "星巴克" {
		t.Errorf("payee: got %q, want 星巴克", got)
	}
	if got := first.Get("备注"); got != "拿铁\n大杯" {
		t.Errorf("duplicate header: got %q, want first column value", got)
	}
	if got := records[1].Line; got != 7 {
		t.Errorf("second record line: got %d, want 7", got)
	}
}

func TestReadCSVTable_NoHeader(t *testing.T) {
	_, err := ReadCSVTable("a,b\n1,2\n", 20, ContainsAny("交易时间"))
	if !errors.Is(err, ErrHeaderNotFound) {
		t.Errorf("got %v, want ErrHeaderNotFound", err)
	}
}

func TestFindColumn(t *testing.T) {
	table := &Table{Header: []string{"交易时间", "金额(元)", "交易对方", "当前状态"}}

	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"exact", []string{"交易时间", "时间"}, "交易时间"},
		{"priority order", []string{"交易对方", "对方"}, "交易对方"},
		{"substring fallback", []string{"金额"}, "金额(元)"},
		{"exact beats earlier substring", []string{"状态", "当前状态"}, "当前状态"},
		{"missing", []string{"备注"}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := table.FindColumn(tc.candidates...); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReadXLSXTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bill.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"微信支付账单明细"},
		{"起始时间:[2026-01-01]"},
		{"交易时间", "交易对方", "金额(元)"},
		{"2026-01-15 12:00:00", "星巴克", "¥35.00"},
		{"2026-01-16 12:00:00", "便利店", "¥12.00"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	table, err := ReadXLSXTable(path, 10, RowContainsAny("交易时间"))
	if err != nil {
		t.Fatalf("ReadXLSXTable: %v", err)
	}
	if table.HeaderLine != 3 {
		t.Errorf("header line: got %d, want 3", table.HeaderLine)
	}
	records := table.Records()
	if len(records) != 2 {
		t.Fatalf("records: got %d, want 2", len(records))
	}
	if got := records[1].Get("交易对方"); got != "便利店" {
		t.Errorf("payee: got %q, want 便利店", got)
	}
	if records[1].Line != 5 {
		t.Errorf("line: got %d, want 5", records[1].Line)
	}

	if _, err := ReadXLSXTable(path, 2, RowContainsAny("交易时间")); !errors.Is(err, ErrHeaderNotFound) {
		t.Errorf("bounded scan: got %v, want ErrHeaderNotFound", err)
	}
}

func TestPrefix(t *testing.T) {
	dir := t.TempDir()
	gbk, _ := simplifiedchinese.GBK.NewEncoder().String("第一行\n交易时间,金额\n第三行\n")
	path := filepath.Join(dir, "gbk.csv")
	if err := os.WriteFile(path, []byte(gbk), 0o600); err != nil {
		t.Fatal(err)
	}

	lines := Prefix(path, 2, DefaultEncodings)
	if len(lines) != 2 || lines[1] != "交易时间,金额" {
		t.Errorf("Prefix: got %q", lines)
	}
	if got := Prefix(filepath.Join(dir, "missing.csv"), 2, nil); got != nil {
		t.Errorf("missing file: got %q, want nil", got)
	}
}
