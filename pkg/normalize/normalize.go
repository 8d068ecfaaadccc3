// Package normalize converts raw bill fields into canonical values and
// enforces the transaction invariants.
package normalize

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/beanbill/pkg/api"
)

// DefaultMaxFileSize is the largest bill file accepted, in bytes.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var (
	// MaxAmount is the largest accepted transaction amount.
	MaxAmount = decimal.NewFromInt(100_000_000)
	// MinDate is the earliest accepted transaction date.
	MinDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Rules holds the bounds a transaction must satisfy.
type Rules struct {
	MaxAmount decimal.Decimal
	MinDate   time.Time
	// Now returns the current time. The upper date bound is Now's calendar day.
	Now func() time.Time
}

// DefaultRules returns the standard bounds with the wall clock.
func DefaultRules() Rules {
	return Rules{
		MaxAmount: MaxAmount,
		MinDate:   MinDate,
		Now:       time.Now,
	}
}

func (r Rules) today() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return dayOf(now())
}

var amountReplacer = strings.NewReplacer("¥", "", "￥", "", "$", "", ",", "", " ", "", "\u00a0", "")

// ParseAmount strips currency symbols, thousands separators and spaces and
// returns the absolute decimal value.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := amountReplacer.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, &api.ValidationError{Field: "amount", Value: s, Reason: "empty"}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &api.ValidationError{Field: "amount", Value: s, Reason: "not a number"}
	}
	return d.Abs(), nil
}

// ParseDate parses s with DefaultRules.
func ParseDate(s string) (time.Time, error) {
	return DefaultRules().ParseDate(s)
}

// ParseDate tries the loose layouts first, then the explicit bill layouts,
// and rejects dates outside [MinDate, today].
func (r Rules) ParseDate(s string) (time.Time, error) {
	// Numeric Excel cells sometimes carry a trailing ".0".
	s = strings.TrimSuffix(strings.TrimSpace(s), ".0")
	if s == "" {
		return time.Time{}, &api.ValidationError{Field: "date", Reason: "empty"}
	}

	d, ok := smartParse(s)
	if !ok {
		d, ok = parseLayouts(s, explicitLayouts)
	}
	if !ok {
		return time.Time{}, &api.ValidationError{Field: "date", Value: s, Reason: "unrecognized format"}
	}

	if err := r.checkDate(d); err != nil {
		return time.Time{}, err
	}
	return d, nil
}

func (r Rules) checkDate(d time.Time) error {
	if d.Before(r.MinDate) {
		return &api.ValidationError{Field: "date", Value: d.Format(time.DateOnly), Reason: "before " + r.MinDate.Format(time.DateOnly)}
	}
	if d.After(r.today()) {
		return &api.ValidationError{Field: "date", Value: d.Format(time.DateOnly), Reason: "in the future"}
	}
	return nil
}

// Validate checks presence, amount bounds and date bounds in that order and
// returns the first violation.
func (r Rules) Validate(tx api.Transaction) error {
	switch {
	case tx.Date.IsZero():
		return &api.ValidationError{Field: "date", Reason: "missing"}
	case strings.TrimSpace(tx.Payee) == "":
		return &api.ValidationError{Field: "payee", Reason: "missing"}
	case tx.Amount.IsZero():
		return &api.ValidationError{Field: "amount", Reason: "missing"}
	}

	if !tx.Amount.IsPositive() {
		return &api.ValidationError{Field: "amount", Value: tx.Amount.String(), Reason: "must be greater than zero"}
	}
	if tx.Amount.GreaterThan(r.MaxAmount) {
		return &api.ValidationError{Field: "amount", Value: tx.Amount.String(), Reason: "exceeds " + r.MaxAmount.String()}
	}
	return r.checkDate(dayOf(tx.Date))
}

// CheckFileSize fails with api.ErrFileSize when the file is larger than limit.
// A non-positive limit means DefaultMaxFileSize.
func CheckFileSize(path string, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > limit {
		return fmt.Errorf("%s is %d bytes, limit %d: %w", path, info.Size(), limit, api.ErrFileSize)
	}
	return nil
}

var textReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", "", "\t", " ")

// Text trims s and flattens line breaks so it fits on one ledger line.
// It returns def when the result is empty.
func Text(s, def string) string {
	s = strings.TrimSpace(textReplacer.Replace(s))
	if s == "" || s == "nan" || s == "NaN" {
		return def
	}
	return s
}
