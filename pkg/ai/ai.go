// Package ai talks to chat-completion services that suggest an expense
// account for a transaction.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ArionMiles/beanbill/pkg/api"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

// Request is one single-turn completion.
type Request struct {
	Model       string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Completer returns the model's text answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
}

// Config selects and authenticates a provider.
type Config struct {
	Provider string
	APIKey   string
	// BaseURL overrides the provider endpoint, e.g. https://api.deepseek.com.
	BaseURL string
	Timeout time.Duration
}

// New builds the Completer for cfg.Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Completer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger.Debug("creating ai client", "component", "ai", "provider", cfg.Provider, "base_url", cfg.BaseURL)

	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// Error is a failed provider call.
type Error struct {
	Provider string
	// StatusCode is the HTTP status, or 0 when no response arrived.
	StatusCode int
	// Transient marks failures worth retrying: timeouts and network errors.
	// Any HTTP response, 5xx included, is final.
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap exposes the cause and, for HTTP 429, api.ErrRateLimit.
func (e *Error) Unwrap() []error {
	if e.StatusCode == http.StatusTooManyRequests {
		return []error{api.ErrRateLimit, e.Err}
	}
	return []error{e.Err}
}

// errEmptyResponse is returned when a call succeeds without any text.
var errEmptyResponse = errors.New("empty response")

// newError classifies a provider failure. status is 0 when the request never
// produced an HTTP response.
func newError(provider string, status int, err error) *Error {
	transient := status == 0 && isNetworkError(err)
	return &Error{Provider: provider, StatusCode: status, Transient: transient, Err: err}
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsTransient reports whether err is worth retrying. A canceled context
// never is.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Transient
	}
	return isNetworkError(err)
}

// IsRateLimited reports whether err is an HTTP 429 from a provider.
func IsRateLimited(err error) bool {
	return errors.Is(err, api.ErrRateLimit)
}
