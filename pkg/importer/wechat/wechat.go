// Package wechat reads WeChat Pay bill exports in CSV and XLSX form.
package wechat

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/importer"
	"github.com/ArionMiles/beanbill/pkg/normalize"
)

// Name is the registry name of this importer.
const Name = "wechat"

const (
	// headerScanRows bounds the header search. WeChat puts a summary block of
	// about 16 rows above the table.
	headerScanRows = 100
	sniffRows      = 20
	headerMarker   = "交易时间"
)

// Column candidates per semantic field, in priority order.
var (
	amountColumns   = []string{"金额(元)", "金额", "amount"}
	dateColumns     = []string{"交易时间", "时间", "交易日期", "date"}
	payeeColumns    = []string{"交易对方", "对方", "商户", "payee"}
	noteColumns     = []string{"商品", "商品说明", "备注", "note"}
	categoryColumns = []string{"交易类型", "类型", "category"}
	accountColumns  = []string{"支付方式", "收付款方式", "account"}
	statusColumns   = []string{"当前状态", "状态", "status"}
)

// sniffColumns are header cells specific enough to identify a WeChat bill.
var sniffColumns = []string{"交易时间", "金额(元)", "交易类型"}

// Importer extracts transactions from WeChat Pay bills.
type Importer struct {
	opts      importer.Options
	encodings []string
}

// New creates a WeChat importer.
func New(opts importer.Options) *Importer {
	return &Importer{
		opts:      opts.Normalized(Name),
		encodings: importer.DefaultEncodings,
	}
}

// Name implements api.Importer.
func (i *Importer) Name() string { return Name }

// Extensions implements api.Importer.
func (i *Importer) Extensions() []string { return []string{".csv", ".xlsx"} }

// MatchesFilename reports whether the file name carries a WeChat keyword.
func (i *Importer) MatchesFilename(path string) bool {
	return importer.HasExtension(path, i.Extensions()) && importer.MatchesKeywords(path, importer.WeChatKeywords)
}

// Supports matches by filename keyword, then by header cells.
func (i *Importer) Supports(path string) bool {
	if !importer.HasExtension(path, i.Extensions()) {
		return false
	}
	if i.MatchesFilename(path) {
		i.opts.Logger.Debug("detected by filename", "file", path)
		return true
	}

	if isXLSX(path) {
		rows, err := importer.ReadXLSXRows(path, sniffRows)
		if err != nil {
			i.opts.Logger.Debug("content check failed", "file", path, "error", err)
			return false
		}
		hasColumn := importer.RowContainsAny(sniffColumns...)
		for _, row := range rows {
			if hasColumn(row) {
				return true
			}
		}
		return false
	}

	lines := importer.Prefix(path, sniffRows, i.encodings)
	for _, line := range lines {
		cells := strings.Split(line, ",")
		for j := range cells {
			cells[j] = strings.TrimSpace(cells[j])
		}
		if importer.RowContainsAny(sniffColumns...)(cells) {
			return true
		}
	}
	return false
}

// Extract implements api.Importer.
func (i *Importer) Extract(path string) ([]api.Transaction, error) {
	table, err := i.readTable(path)
	if err != nil {
		if errors.Is(err, importer.ErrHeaderNotFound) {
			return nil, api.NewFormatError(path, "no wechat header (交易时间)", err)
		}
		return nil, fmt.Errorf("reading wechat bill: %w", err)
	}
	i.opts.Logger.Debug("found header", "line", table.HeaderLine)

	cols := columns{
		amount:   table.FindColumn(amountColumns...),
		date:     table.FindColumn(dateColumns...),
		payee:    table.FindColumn(payeeColumns...),
		note:     table.FindColumn(noteColumns...),
		category: table.FindColumn(categoryColumns...),
		account:  table.FindColumn(accountColumns...),
		status:   table.FindColumn(statusColumns...),
	}
	if cols.amount == "" || cols.date == "" {
		return nil, api.NewFormatError(path, "missing required amount or date column", nil)
	}
	i.opts.Logger.Debug("resolved columns", "amount", cols.amount, "date", cols.date, "status", cols.status)

	txs, _ := importer.ConvertRecords(table.Records(), i.opts, func(rec importer.Record) (api.Transaction, bool, error) {
		return i.convert(rec, cols)
	})
	return txs, nil
}

func (i *Importer) readTable(path string) (*importer.Table, error) {
	if isXLSX(path) {
		if err := normalize.CheckFileSize(path, i.opts.MaxFileSize); err != nil {
			return nil, err
		}
		return importer.ReadXLSXTable(path, headerScanRows, importer.RowContainsAny(headerMarker))
	}

	text, err := importer.ReadText(path, i.opts, i.encodings)
	if err != nil {
		return nil, err
	}
	return importer.ReadCSVTable(text, headerScanRows, importer.ContainsAny(headerMarker))
}

type columns struct {
	amount, date, payee, note, category, account, status string
}

func (i *Importer) convert(rec importer.Record, cols columns) (api.Transaction, bool, error) {
	rawAmount, rawDate := rec.Get(cols.amount), rec.Get(cols.date)
	if rawAmount == "" || rawDate == "" {
		return api.Transaction{}, false, nil
	}
	if cols.status != "" {
		if status := rec.Get(cols.status); !importer.IsSuccessStatus(status) {
			i.opts.Logger.Debug("skipping non-success status", "line", rec.Line, "status", status)
			return api.Transaction{}, false, nil
		}
	}

	amount, err := normalize.ParseAmount(rawAmount)
	if err != nil {
		return api.Transaction{}, false, err
	}
	date, err := i.opts.Rules.ParseDate(rawDate)
	if err != nil {
		return api.Transaction{}, false, err
	}

	var direction api.Direction
	switch rec.Get("收/支") {
	case "支出":
		direction = api.DirectionOut
	case "收入":
		direction = api.DirectionIn
	}

	return api.Transaction{
		Date:        date,
		Payee:       normalize.Text(rec.Get(cols.payee), "未知商户"),
		Amount:      amount,
		RawCategory: normalize.Text(rec.Get(cols.category), "未分类"),
		RawAccount:  normalize.Text(rec.Get(cols.account), "微信"),
		Note:        normalize.Text(rec.Get(cols.note), ""),
		Source:      api.SourceWeChat,
		Status:      api.StatusSuccess,
		Direction:   direction,
	}, true, nil
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
