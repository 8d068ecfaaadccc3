// Package alipay reads Alipay CSV bill exports.
package alipay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/importer"
	"github.com/ArionMiles/beanbill/pkg/normalize"
)

// Name is the registry name of this importer.
const Name = "alipay"

// headerScanLines bounds the search for the header line.
const headerScanLines = 20

// legacyHeader is the column layout of older Alipay exports. The first six
// columns identify the format during content sniffing.
var legacyHeader = []string{"记录时间", "交易号", "交易对方", "收/支", "金额", "来源", "备注", "标签"}

// currentHeader identifies the layout used by recent exports.
var currentHeader = []string{"交易时间", "交易对方", "收/支", "金额", "交易状态"}

var timeColumns = []string{"交易时间", "记录时间"}

// Importer extracts transactions from Alipay CSV files.
type Importer struct {
	opts      importer.Options
	encodings []string
}

// New creates an Alipay importer.
func New(opts importer.Options) *Importer {
	return &Importer{
		opts:      opts.Normalized(Name),
		encodings: importer.DefaultEncodings,
	}
}

// Name implements api.Importer.
func (i *Importer) Name() string { return Name }

// Extensions implements api.Importer.
func (i *Importer) Extensions() []string { return []string{".csv"} }

// MatchesFilename reports whether the file name carries an Alipay keyword.
func (i *Importer) MatchesFilename(path string) bool {
	return importer.HasExtension(path, i.Extensions()) && importer.MatchesKeywords(path, importer.AlipayKeywords)
}

// Supports matches by filename keyword, then by looking for a known header
// among the first lines of the file.
func (i *Importer) Supports(path string) bool {
	if !importer.HasExtension(path, i.Extensions()) {
		return false
	}
	if i.MatchesFilename(path) {
		i.opts.Logger.Debug("detected by filename", "file", path)
		return true
	}
	return i.sniff(importer.Prefix(path, headerScanLines, i.encodings))
}

func (i *Importer) sniff(lines []string) bool {
	hasTime := importer.ContainsAny(timeColumns...)
	for _, line := range lines {
		if !hasTime(line) {
			continue
		}
		if containsAll(line, currentHeader) || allPresent(lines, legacyHeader[:6]) {
			return true
		}
	}
	return false
}

// Extract implements api.Importer.
func (i *Importer) Extract(path string) ([]api.Transaction, error) {
	text, err := importer.ReadText(path, i.opts, i.encodings)
	if err != nil {
		return nil, fmt.Errorf("reading alipay bill: %w", err)
	}

	table, err := importer.ReadCSVTable(text, headerScanLines, importer.ContainsAny(timeColumns...))
	if err != nil {
		if errors.Is(err, importer.ErrHeaderNotFound) {
			return nil, api.NewFormatError(path, "no alipay header (交易时间/记录时间)", err)
		}
		return nil, fmt.Errorf("parsing alipay bill: %w", err)
	}
	i.opts.Logger.Debug("found header", "line", table.HeaderLine)

	hasStatus := table.HasColumn("交易状态")
	txs, _ := importer.ConvertRecords(table.Records(), i.opts, func(rec importer.Record) (api.Transaction, bool, error) {
		return i.convert(rec, hasStatus)
	})
	return txs, nil
}

func (i *Importer) convert(rec importer.Record, hasStatus bool) (api.Transaction, bool, error) {
	rawAmount := rec.Get("金额")
	if rawAmount == "" {
		return api.Transaction{}, false, nil
	}
	if hasStatus && !importer.IsSuccessStatus(rec.Get("交易状态")) {
		return api.Transaction{}, false, nil
	}

	date, err := i.opts.Rules.ParseDate(rec.First(timeColumns...))
	if err != nil {
		return api.Transaction{}, false, err
	}
	amount, err := normalize.ParseAmount(rawAmount)
	if err != nil {
		return api.Transaction{}, false, err
	}

	direction := api.DirectionIn
	if rec.Get("收/支") == "支出" {
		direction = api.DirectionOut
	}

	return api.Transaction{
		Date:        date,
		Payee:       normalize.Text(rec.Get("交易对方"), "未知商户"),
		Amount:      amount,
		RawCategory: normalize.Text(rec.First("标签", "交易分类"), "未分类"),
		RawAccount:  normalize.Text(rec.First("来源", "账户", "收/付款方式"), "支付宝"),
		Note:        normalize.Text(rec.First("商品说明", "备注"), ""),
		Source:      api.SourceAlipay,
		Status:      api.StatusSuccess,
		Direction:   direction,
	}, true, nil
}

func containsAll(line string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(line, tok) {
			return false
		}
	}
	return true
}

func allPresent(lines, tokens []string) bool {
	for _, tok := range tokens {
		found := false
		for _, line := range lines {
			if strings.Contains(line, tok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
