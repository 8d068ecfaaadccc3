// Package sheets implements an Exporter that appends postings to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/export/csv"
)

// Defaults for rate-limit retries.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 60 * time.Second
)

// Config holds configuration for the Sheets exporter.
type Config struct {
	// SpreadsheetID is an existing spreadsheet. When empty or unreachable a
	// new spreadsheet titled Title is created.
	SpreadsheetID string
	Title         string
	// SheetName is the tab within the spreadsheet.
	SheetName string

	Attempts   uint
	RetryDelay time.Duration

	// Options are passed to the Sheets service, e.g. a custom endpoint.
	Options []option.ClientOption
}

// Exporter appends postings to a Google Sheet.
type Exporter struct {
	client      *sheets.Service
	spreadsheet *sheets.Spreadsheet
	cfg         Config
	logger      *slog.Logger
}

// New connects to the Sheets API and resolves the target spreadsheet.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	if cfg.Title == "" {
		cfg.Title = "beanbill"
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, cfg.Options...)
	client, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	e := &Exporter{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "sheets_export"),
	}

	spreadsheet, err := e.initSpreadsheet(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing spreadsheet: %w", err)
	}
	e.spreadsheet = spreadsheet

	e.logger.Info("sheets export ready", "spreadsheet_id", spreadsheet.SpreadsheetId, "sheet", cfg.SheetName)
	return e, nil
}

func (e *Exporter) initSpreadsheet(ctx context.Context) (*sheets.Spreadsheet, error) {
	if e.cfg.SpreadsheetID != "" {
		spreadsheet, err := e.client.Spreadsheets.Get(e.cfg.SpreadsheetID).Context(ctx).Do()
		if err == nil {
			e.logger.Info("using existing spreadsheet", "id", e.cfg.SpreadsheetID)
			return spreadsheet, nil
		}
		e.logger.Warn("failed to get spreadsheet, will create new one", "id", e.cfg.SpreadsheetID, "error", err)
	}

	spreadsheet, err := e.client.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: e.cfg.Title},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: e.cfg.SheetName}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet: %w", err)
	}
	e.logger.Info("created new spreadsheet", "title", e.cfg.Title, "id", spreadsheet.SpreadsheetId)

	if err := e.writeHeader(ctx, spreadsheet.SpreadsheetId); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return spreadsheet, nil
}

func (e *Exporter) writeHeader(ctx context.Context, spreadsheetID string) error {
	row := make([]any, len(csv.Header))
	for i, h := range csv.Header {
		row[i] = h
	}
	headerRange := fmt.Sprintf("%s!A1:H1", e.cfg.SheetName)
	_, err := e.client.Spreadsheets.Values.Update(spreadsheetID, headerRange, &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// Name implements export.Exporter.
func (e *Exporter) Name() string { return "sheets" }

// Export appends the postings in a single API call, retrying rate limits.
func (e *Exporter) Export(ctx context.Context, postings []api.Posting) error {
	if len(postings) == 0 {
		return nil
	}

	values := make([][]any, 0, len(postings))
	for _, p := range postings {
		values = append(values, []any{
			p.Date.Format("2006-01-02"),
			p.Payee,
			p.Amount.InexactFloat64(),
			p.Expense,
			p.Asset,
			p.RawCategory,
			string(p.Source),
			p.Note,
		})
	}
	writeRange := fmt.Sprintf("%s!A2:H2", e.cfg.SheetName)
	req := sheets.ValueRange{Values: values}

	err := retry.Do(
		func() error {
			_, err := e.client.Spreadsheets.Values.Append(e.spreadsheet.SpreadsheetId, writeRange, &req).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				e.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(e.cfg.Attempts),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("appending postings to sheet: %w", err)
	}

	e.logger.Info("exported postings", "count", len(postings), "first_payee", postings[0].Payee)
	return nil
}

// SpreadsheetID returns the ID of the spreadsheet being written to.
func (e *Exporter) SpreadsheetID() string {
	if e.spreadsheet == nil {
		return ""
	}
	return e.spreadsheet.SpreadsheetId
}
