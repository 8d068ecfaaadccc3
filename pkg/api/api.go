// Package api defines the core interfaces and data structures for beanbill.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies the importer that produced a transaction.
type Source string

// Known transaction sources.
const (
	SourceAlipay Source = "alipay"
	SourceWeChat Source = "wechat"
	SourceBank   Source = "bank"
)

// Direction is the money flow reported by the bill export.
type Direction string

// Directions as reported by payment apps. Banks usually leave it empty.
const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// StatusSuccess is the status assigned to every extracted transaction.
// Rows in any other state are filtered out during extraction.
const StatusSuccess = "success"

// Transaction is a normalized bill row.
type Transaction struct {
	// Date is the transaction day at UTC midnight.
	Date time.Time `json:"date"`
	// Payee is the merchant or counterparty.
	Payee string `json:"payee"`
	// Amount is always a positive magnitude.
	Amount decimal.Decimal `json:"amount"`
	// RawCategory is the category tag from the source export.
	RawCategory string `json:"raw_category"`
	// RawAccount describes the payment instrument, e.g. "招商银行储蓄卡(1234)".
	RawAccount string    `json:"raw_account"`
	Note       string    `json:"note"`
	Source     Source    `json:"source"`
	Status     string    `json:"status"`
	Direction  Direction `json:"direction,omitempty"`
}

// Month returns the ledger segment key for the transaction, e.g. "202601".
func (t Transaction) Month() string {
	return t.Date.Format("200601")
}

// Posting is a transaction with both legs resolved.
type Posting struct {
	Transaction
	Expense string `json:"expense_account"`
	Asset   string `json:"asset_account"`
}

// Importer detects and extracts one family of bill files.
type Importer interface {
	// Name returns the platform name, e.g. "alipay".
	Name() string
	// Extensions returns the lowercase file extensions this importer reads, including the dot.
	Extensions() []string
	// Supports reports whether the file looks like a bill of this family.
	Supports(path string) bool
	// Extract reads every usable transaction in the file.
	// Unusable rows are logged and skipped, they never fail the call.
	Extract(path string) ([]Transaction, error)
}
