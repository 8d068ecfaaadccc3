// Package bank reads bank statements exported as XLSX workbooks or PDF files.
package bank

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
const Name = "bank"

const (
	headerScanRows = 20
	// sniffPages bounds how much of a PDF is read during detection.
	sniffPages = 3

	defaultPayee    = "银行交易"
	defaultCategory = "银行交易"
	defaultAccount  = "银行账户"
)

// Column candidates per semantic field, in priority order.
var (
	dateColumns     = []string{"交易日期", "交易时间", "日期", "时间", "date", "transaction_date"}
	amountColumns   = []string{"金额", "交易金额", "amount", "transaction_amount"}
	payeeColumns    = []string{"交易对方", "对方户名", "收款人", "付款人", "payee", "counterparty"}
	noteColumns     = []string{"摘要", "备注", "说明", "description", "note"}
	categoryColumns = []string{"交易类型", "业务类型", "type", "category"}
	accountColumns  = []string{"账户", "卡号", "account", "card_number"}
	statusColumns   = []string{"交易状态", "状态", "status"}
)

// pdfKeywords identify a statement by its text when the filename does not.
var pdfKeywords = []string{
	"银行", "账户", "流水", "交易", "余额", "银行账单",
	"account statement", "transaction", "balance",
}

// Importer extracts transactions from bank statements.
type Importer struct {
	opts importer.Options
}

// New creates a bank statement importer.
func New(opts importer.Options) *Importer {
	return &Importer{opts: opts.Normalized(Name)}
}

// Name implements api.Importer.
func (i *Importer) Name() string { return Name }

// Extensions implements api.Importer.
func (i *Importer) Extensions() []string { return []string{".xlsx", ".pdf"} }

// MatchesFilename reports whether the file name carries a bank keyword.
func (i *Importer) MatchesFilename(path string) bool {
	return importer.HasExtension(path, i.Extensions()) && importer.MatchesKeywords(path, importer.BankKeywords)
}

// Supports matches by filename keyword, then by workbook header cells or
// statement keywords in the first PDF pages.
func (i *Importer) Supports(path string) bool {
	if !importer.HasExtension(path, i.Extensions()) {
		return false
	}
	if i.MatchesFilename(path) {
		i.opts.Logger.Debug("detected by filename", "file", path)
		return true
	}

	if isPDF(path) {
		lines, err := readPDFLines(path, sniffPages)
		if err != nil {
			i.opts.Logger.Debug("pdf content check failed", "file", path, "error", err)
			return false
		}
		for _, l := range lines {
			for _, kw := range pdfKeywords {
				if strings.Contains(l.text, kw) {
					return true
				}
			}
		}
		return false
	}

	rows, err := importer.ReadXLSXRows(path, headerScanRows)
	if err != nil {
		i.opts.Logger.Debug("excel content check failed", "file", path, "error", err)
		return false
	}
	for _, row := range rows {
		if isHeaderRow(row) {
			return true
		}
	}
	return false
}

// Extract implements api.Importer.
func (i *Importer) Extract(path string) ([]api.Transaction, error) {
	if err := normalize.CheckFileSize(path, i.opts.MaxFileSize); err != nil {
		return nil, fmt.Errorf("reading bank statement: %w", err)
	}
	if isPDF(path) {
		return i.extractPDF(path)
	}
	return i.extractXLSX(path)
}

func (i *Importer) extractXLSX(path string) ([]api.Transaction, error) {
	table, err := importer.ReadXLSXTable(path, headerScanRows, isHeaderRow)
	if err != nil {
		if errors.Is(err, importer.ErrHeaderNotFound) {
			return nil, api.NewFormatError(path, "no date and amount columns", err)
		}
		return nil, fmt.Errorf("reading bank workbook: %w", err)
	}

	cols := columns{
		date:     table.FindColumn(dateColumns...),
		amount:   table.FindColumn(amountColumns...),
		payee:    table.FindColumn(payeeColumns...),
		note:     table.FindColumn(noteColumns...),
		category: table.FindColumn(categoryColumns...),
		account:  table.FindColumn(accountColumns...),
		status:   table.FindColumn(statusColumns...),
	}
	i.opts.Logger.Debug("resolved columns", "date", cols.date, "amount", cols.amount, "payee", cols.payee)

	txs, _ := importer.ConvertRecords(table.Records(), i.opts, func(rec importer.Record) (api.Transaction, bool, error) {
		return i.convert(rec, cols)
	})
	return txs, nil
}

type columns struct {
	date, amount, payee, note, category, account, status string
}

func (i *Importer) convert(rec importer.Record, cols columns) (api.Transaction, bool, error) {
	rawDate, rawAmount := rec.Get(cols.date), rec.Get(cols.amount)
	if rawDate == "" || rawAmount == "" {
		return api.Transaction{}, false, nil
	}
	if cols.status != "" {
		if status := rec.Get(cols.status); status != "" && !importer.IsSuccessStatus(status) {
			return api.Transaction{}, false, nil
		}
	}

	date, err := i.opts.Rules.ParseDate(rawDate)
	if err != nil {
		return api.Transaction{}, false, err
	}
	amount, err := normalize.ParseAmount(rawAmount)
	if err != nil {
		return api.Transaction{}, false, err
	}

	return api.Transaction{
		Date:        date,
		Payee:       normalize.Text(rec.Get(cols.payee), defaultPayee),
		Amount:      amount,
		RawCategory: normalize.Text(rec.Get(cols.category), defaultCategory),
		RawAccount:  normalize.Text(rec.Get(cols.account), defaultAccount),
		Note:        normalize.Text(rec.Get(cols.note), ""),
		Source:      api.SourceBank,
		Status:      api.StatusSuccess,
	}, true, nil
}

// isHeaderRow accepts a row holding both a date and an amount column.
func isHeaderRow(row []string) bool {
	return importer.RowContainsAny(dateColumns...)(row) && importer.RowContainsAny(amountColumns...)(row)
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
