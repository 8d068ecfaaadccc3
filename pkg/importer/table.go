package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a header row plus the data rows under it.
type Table struct {
	Header []string
	// HeaderLine is the 1-based line (CSV) or row (XLSX) of the header.
	HeaderLine int
	rows       []tableRow
}

type tableRow struct {
	line  int
	cells []string
}

// Record is one data row keyed by trimmed header names.
type Record struct {
	// Line is the 1-based line or row number in the source file.
	Line   int
	fields map[string]string
}

// ErrHeaderNotFound means no header line was found within the scan bound.
var ErrHeaderNotFound = errors.New("header line not found")

// NewRecord builds a record from explicit fields. Keys and values are trimmed
// and empty keys dropped.
func NewRecord(line int, fields map[string]string) Record {
	r := Record{Line: line, fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		r.fields[k] = strings.TrimSpace(v)
	}
	return r
}

// Get returns the value under column, or "".
func (r Record) Get(column string) string {
	return r.fields[column]
}

// First returns the first non-empty value among the candidate columns.
func (r Record) First(columns ...string) string {
	for _, c := range columns {
		if c == "" {
			continue
		}
		if v := r.fields[c]; v != "" {
			return v
		}
	}
	return ""
}

// Records converts the data rows to records. Blank rows are dropped.
func (t *Table) Records() []Record {
	records := make([]Record, 0, len(t.rows))
	for _, row := range t.rows {
		if isBlank(row.cells) {
			continue
		}
		fields := make(map[string]string, len(t.Header))
		for i, name := range t.Header {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := fields[name]; dup {
				continue
			}
			value := ""
			if i < len(row.cells) {
				value = strings.TrimSpace(row.cells[i])
			}
			fields[name] = value
		}
		records = append(records, Record{Line: row.line, fields: fields})
	}
	return records
}

// FindColumn resolves a semantic field to a header name. Candidates are tried
// in order, first as exact names and then as substrings of a header cell.
// It returns "" when nothing matches.
func (t *Table) FindColumn(candidates ...string) string {
	for _, c := range candidates {
		for _, h := range t.Header {
			if strings.TrimSpace(h) == c {
				return c
			}
		}
	}
	for _, c := range candidates {
		for _, h := range t.Header {
			if h = strings.TrimSpace(h); h != "" && strings.Contains(h, c) {
				return h
			}
		}
	}
	return ""
}

// HasColumn reports whether any header cell equals one of names.
func (t *Table) HasColumn(names ...string) bool {
	for _, h := range t.Header {
		for _, n := range names {
			if strings.TrimSpace(h) == n {
				return true
			}
		}
	}
	return false
}

// FindHeaderLine returns the index of the first of the leading maxScan lines
// accepted by isHeader, or -1.
func FindHeaderLine(lines []string, maxScan int, isHeader func(string) bool) int {
	for i, line := range lines {
		if i >= maxScan {
			break
		}
		if isHeader(line) {
			return i
		}
	}
	return -1
}

// ContainsAny returns a header predicate matching lines that contain any token.
func ContainsAny(tokens ...string) func(string) bool {
	return func(line string) bool {
		for _, tok := range tokens {
			if strings.Contains(line, tok) {
				return true
			}
		}
		return false
	}
}

// SplitLines splits text on \n, dropping \r.
func SplitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// ReadCSVTable locates the header within the first maxScan lines of text and
// parses everything from the header on as CSV.
func ReadCSVTable(text string, maxScan int, isHeader func(string) bool) (*Table, error) {
	lines := SplitLines(text)
	idx := FindHeaderLine(lines, maxScan, isHeader)
	if idx < 0 {
		return nil, fmt.Errorf("%w within first %d lines", ErrHeaderNotFound, maxScan)
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines[idx:], "\n")))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	t := &Table{Header: trimAll(header), HeaderLine: idx + 1}
	for {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Trailing summary blocks in app exports are not always valid CSV.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line, _ := r.FieldPos(0)
		t.rows = append(t.rows, tableRow{line: idx + line, cells: cells})
	}
	return t, nil
}

// ReadXLSXTable opens the first worksheet of an XLSX workbook and locates the
// header among its first maxScan rows.
func ReadXLSXTable(path string, maxScan int, isHeader func([]string) bool) (*Table, error) {
	rows, err := ReadXLSXRows(path, 0)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		if i >= maxScan {
			break
		}
		if !isHeader(trimAll(row)) {
			continue
		}
		t := &Table{Header: trimAll(row), HeaderLine: i + 1}
		for j, cells := range rows[i+1:] {
			t.rows = append(t.rows, tableRow{line: i + j + 2, cells: cells})
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w within first %d rows", ErrHeaderNotFound, maxScan)
}

// ReadXLSXRows returns the rows of the first worksheet. A positive limit
// stops reading after that many rows.
func ReadXLSXRows(path string, limit int) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	iter, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	defer iter.Close()

	var rows [][]string
	for iter.Next() {
		if limit > 0 && len(rows) >= limit {
			break
		}
		cols, err := iter.Columns()
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, cols)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return rows, nil
}

// RowContainsAny returns a header predicate for spreadsheet rows that have a
// cell equal to any of names.
func RowContainsAny(names ...string) func([]string) bool {
	return func(row []string) bool {
		for _, cell := range row {
			for _, n := range names {
				if cell == n {
					return true
				}
			}
		}
		return false
	}
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
