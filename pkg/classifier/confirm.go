package classifier

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

// ConfirmRequest is what the user is asked to approve.
type ConfirmRequest struct {
	Date       time.Time
	Payee      string
	Amount     decimal.Decimal
	Suggestion string
	// Allowed is sorted.
	Allowed []string
}

// Confirmer resolves the final account for a suggestion.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (string, error)
}

// AcceptConfirmer approves every suggestion without asking.
type AcceptConfirmer struct{}

// Confirm implements Confirmer.
func (AcceptConfirmer) Confirm(_ context.Context, req ConfirmRequest) (string, error) {
	return req.Suggestion, nil
}

// sampleSize is how many allowed accounts are shown with each prompt.
const sampleSize = 10

// TerminalConfirmer asks on a terminal. An empty line accepts the
// suggestion, a listed account overrides it, anything else re-prompts.
// End of input, an Interrupt or a canceled context accepts the suggestion.
type TerminalConfirmer struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	once  sync.Once
	lines chan string

	waiting   atomic.Bool
	interrupt chan struct{}

	title   *color.Color
	suggest *color.Color
	warn    *color.Color
}

// NewTerminalConfirmer reads answers from in and writes prompts to out.
func NewTerminalConfirmer(in io.Reader, out io.Writer, logger *slog.Logger) *TerminalConfirmer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TerminalConfirmer{
		in:        in,
		out:       out,
		logger:    logger.With("component", "confirm"),
		lines:     make(chan string),
		interrupt: make(chan struct{}, 1),
		title:     color.New(color.FgCyan, color.Bold),
		suggest:   color.New(color.FgGreen, color.Bold),
		warn:      color.New(color.FgRed),
	}
}

// Confirm implements Confirmer.
func (t *TerminalConfirmer) Confirm(ctx context.Context, req ConfirmRequest) (string, error) {
	t.prompt(req)

	for {
		fmt.Fprint(t.out, "Press Enter to accept, or type an account: ")
		line, ok := t.readLine(ctx)
		if !ok {
			fmt.Fprintln(t.out)
			t.logger.Info("no answer, accepting suggestion", "payee", req.Payee, "account", req.Suggestion)
			return req.Suggestion, nil
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			return req.Suggestion, nil
		case slices.Contains(req.Allowed, line):
			return line, nil
		default:
			t.warn.Fprintf(t.out, "%q is not an allowed account\n", line)
		}
	}
}

func (t *TerminalConfirmer) prompt(req ConfirmRequest) {
	fmt.Fprintln(t.out)
	t.title.Fprintf(t.out, "%s  %s  %s\n", req.Date.Format(time.DateOnly), req.Payee, req.Amount.StringFixed(2))
	fmt.Fprint(t.out, "Suggested: ")
	t.suggest.Fprintln(t.out, req.Suggestion)

	sample := req.Allowed
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	fmt.Fprintln(t.out, "Accounts:")
	for _, acct := range sample {
		fmt.Fprintf(t.out, "  %s\n", acct)
	}
	if more := len(req.Allowed) - len(sample); more > 0 {
		fmt.Fprintf(t.out, "  ... and %d more\n", more)
	}
}

// Interrupt resolves a prompt that is waiting for input by accepting its
// suggestion. It reports false when no prompt is waiting, leaving the
// interrupt to the caller.
func (t *TerminalConfirmer) Interrupt() bool {
	if !t.waiting.Load() {
		return false
	}
	select {
	case t.interrupt <- struct{}{}:
	default:
	}
	return true
}

// readLine waits for the next input line. It reports false at end of input,
// on Interrupt or when ctx is done.
func (t *TerminalConfirmer) readLine(ctx context.Context) (string, bool) {
	t.once.Do(func() { go t.pump() })

	// Drop an interrupt that arrived after the previous answer.
	select {
	case <-t.interrupt:
	default:
	}
	t.waiting.Store(true)
	defer t.waiting.Store(false)

	select {
	case line, ok := <-t.lines:
		return line, ok
	case <-t.interrupt:
		t.logger.Info("interrupted while waiting for an answer")
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func (t *TerminalConfirmer) pump() {
	defer close(t.lines)
	sc := bufio.NewScanner(t.in)
	for sc.Scan() {
		t.lines <- sc.Text()
	}
	if err := sc.Err(); err != nil {
		t.logger.Warn("reading confirmation input", "error", err)
	}
}
