package bank

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/importer"
	"github.com/ArionMiles/beanbill/pkg/normalize"
)

var (
	datePattern   = regexp.MustCompile(`\d{4}[年/-]\d{1,2}[月/-]\d{1,2}日?`)
	amountPattern = regexp.MustCompile(`[-+]?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?`)

	dateSeparators = strings.NewReplacer("年", "-", "月", "-", "日", "", "/", "-")
)

// Synthetic column names for records built from PDF text lines.
const (
	fieldDate   = "date"
	fieldAmount = "amount"
	fieldPayee  = "payee"
	fieldPage   = "page"
)

type pdfLine struct {
	page int
	text string
}

func (i *Importer) extractPDF(path string) ([]api.Transaction, error) {
	lines, err := readPDFLines(path, 0)
	if err != nil {
		return nil, api.NewFormatError(path, "unreadable pdf", err)
	}
	i.opts.Logger.Debug("read pdf text", "lines", len(lines))

	txs, _ := importer.ConvertRecords(lineRecords(lines), i.opts, i.convertLine)
	return txs, nil
}

// lineRecords turns text lines holding a date followed by an amount into
// records. Other lines are headers, balances or page furniture and are
// dropped.
func lineRecords(lines []pdfLine) []importer.Record {
	var records []importer.Record
	for n, l := range lines {
		fields, ok := splitLine(l.text)
		if !ok {
			continue
		}
		fields[fieldPage] = strconv.Itoa(l.page)
		records = append(records, importer.NewRecord(n+1, fields))
	}
	return records
}

// splitLine finds the first date on a line and the amount after it. The
// text between them is the payee. Decimal amounts are preferred so that card
// numbers and serials are not taken for money.
func splitLine(text string) (map[string]string, bool) {
	loc := datePattern.FindStringIndex(text)
	if loc == nil {
		return nil, false
	}
	rest := text[loc[1]:]

	matches := amountPattern.FindAllStringIndex(rest, -1)
	if len(matches) == 0 {
		return nil, false
	}
	pick := matches[0]
	for _, m := range matches {
		if strings.Contains(rest[m[0]:m[1]], ".") {
			pick = m
			break
		}
	}

	return map[string]string{
		fieldDate:   text[loc[0]:loc[1]],
		fieldAmount: rest[pick[0]:pick[1]],
		fieldPayee:  rest[:pick[0]],
	}, true
}

func (i *Importer) convertLine(rec importer.Record) (api.Transaction, bool, error) {
	date, err := i.opts.Rules.ParseDate(dateSeparators.Replace(rec.Get(fieldDate)))
	if err != nil {
		return api.Transaction{}, false, err
	}
	amount, err := normalize.ParseAmount(rec.Get(fieldAmount))
	if err != nil {
		return api.Transaction{}, false, err
	}

	return api.Transaction{
		Date:        date,
		Payee:       normalize.Text(rec.Get(fieldPayee), defaultPayee),
		Amount:      amount,
		RawCategory: defaultCategory,
		RawAccount:  defaultAccount,
		Note:        "PDF page " + rec.Get(fieldPage),
		Source:      api.SourceBank,
		Status:      api.StatusSuccess,
	}, true, nil
}

// readPDFLines returns the text rows of a PDF. A positive maxPages stops
// after that many pages.
func readPDFLines(path string, maxPages int) ([]pdfLine, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	pages := r.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	var lines []pdfLine
	for n := 1; n <= pages; n++ {
		p := r.Page(n)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", n, err)
		}
		for _, row := range rows {
			if text := joinRow(row.Content); text != "" {
				lines = append(lines, pdfLine{page: n, text: text})
			}
		}
	}
	return lines, nil
}

// joinRow concatenates the glyph runs of a row, inserting a space where the
// horizontal gap between runs is wider than a fraction of the font size.
func joinRow(runs pdf.TextHorizontal) string {
	var sb strings.Builder
	var prevEnd float64
	for j, t := range runs {
		if j > 0 && t.X-prevEnd > t.FontSize*0.3 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return strings.TrimSpace(sb.String())
}
