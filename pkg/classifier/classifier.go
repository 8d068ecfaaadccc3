// Package classifier assigns an expense account to a transaction: learned
// mappings first, then an AI suggestion confirmed by the user.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/beanbill/pkg/ai"
	"github.com/ArionMiles/beanbill/pkg/api"
	"github.com/ArionMiles/beanbill/pkg/cache"
)

// Default retry and request settings.
const (
	DefaultAttempts      = 3
	DefaultMinDelay      = 4 * time.Second
	DefaultMaxDelay      = 60 * time.Second
	DefaultMaxTokens     = 100
	DefaultExpensePrefix = "Expenses:"
)

// Config holds classifier settings. Zero fields other than Temperature
// take the defaults; a zero Temperature is sent as is.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int

	Attempts uint
	MinDelay time.Duration
	MaxDelay time.Duration
	// RetryIf decides which AI failures are retried. Defaults to ai.IsTransient.
	RetryIf func(error) bool

	ExpensePrefix string
	// SaveEach persists the cache after every resolved miss instead of
	// leaving it to the caller's end-of-file save.
	SaveEach bool
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Attempts == 0 {
		c.Attempts = DefaultAttempts
	}
	if c.MinDelay <= 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.RetryIf == nil {
		c.RetryIf = ai.IsTransient
	}
	if c.ExpensePrefix == "" {
		c.ExpensePrefix = DefaultExpensePrefix
	}
	return c
}

// Stats counts classification outcomes.
type Stats struct {
	CacheHits  int
	AIRequests int
	Degraded   int
	Overridden int
}

// Classifier resolves expense accounts. It is not safe for concurrent use.
type Classifier struct {
	cfg       Config
	completer ai.Completer
	cache     *cache.Cache
	confirmer Confirmer
	logger    *slog.Logger
	stats     Stats
}

// New creates a classifier. A nil confirmer accepts every suggestion.
func New(cfg Config, completer ai.Completer, c *cache.Cache, confirmer Confirmer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if confirmer == nil {
		confirmer = AcceptConfirmer{}
	}
	return &Classifier{
		cfg:       cfg.withDefaults(),
		completer: completer,
		cache:     c,
		confirmer: confirmer,
		logger:    logger.With("component", "classifier"),
	}
}

// Stats returns the counters so far.
func (c *Classifier) Stats() Stats { return c.stats }

// Classify returns the expense account for tx, chosen from allowed.
// Failures wrap api.ErrClassification.
func (c *Classifier) Classify(ctx context.Context, tx api.Transaction, allowed []string) (string, error) {
	key := cache.Key(tx.Payee, tx.RawCategory)
	if account, ok := c.cache.Get(key); ok && account != "" {
		c.stats.CacheHits++
		c.logger.Debug("cache hit", "key", key, "account", account)
		return account, nil
	}

	accounts := sortedUnique(allowed)
	if len(accounts) == 0 {
		return "", fmt.Errorf("%w: no allowed accounts", api.ErrClassification)
	}

	answer, err := c.request(ctx, tx, accounts)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", api.ErrClassification, tx.Payee, err)
	}

	suggestion := Clean(answer)
	if !slices.Contains(accounts, suggestion) {
		fallback, err := Degrade(accounts, c.cfg.ExpensePrefix)
		if err != nil {
			return "", err
		}
		c.stats.Degraded++
		c.logger.Warn("suggestion not in allowed accounts, falling back",
			"payee", tx.Payee,
			"suggestion", suggestion,
			"fallback", fallback,
		)
		suggestion = fallback
	}

	account, err := c.confirmer.Confirm(ctx, ConfirmRequest{
		Date:       tx.Date,
		Payee:      tx.Payee,
		Amount:     tx.Amount,
		Suggestion: suggestion,
		Allowed:    accounts,
	})
	if err != nil || account == "" {
		c.logger.Warn("confirmation failed, accepting suggestion", "payee", tx.Payee, "error", err)
		account = suggestion
	}
	if account != suggestion {
		c.stats.Overridden++
	}

	c.cache.Set(key, account)
	if c.cfg.SaveEach {
		c.cache.Save(ctx)
	}
	c.logger.Debug("classified", "key", key, "account", account)
	return account, nil
}

// request asks the model for a suggestion, retrying failures accepted by
// the retry policy with capped exponential backoff.
func (c *Classifier) request(ctx context.Context, tx api.Transaction, accounts []string) (string, error) {
	req := ai.Request{
		Model:       c.cfg.Model,
		Prompt:      Prompt(tx, accounts),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	var answer string
	err := retry.Do(
		func() error {
			c.stats.AIRequests++
			out, err := c.completer.Complete(ctx, req)
			if err != nil {
				return err
			}
			answer = out
			return nil
		},
		retry.RetryIf(func(err error) bool {
			if ai.IsRateLimited(err) {
				c.logger.Warn("rate limited by ai provider", "payee", tx.Payee, "error", err)
			}
			return c.cfg.RetryIf(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("ai request failed", "attempt", n+1, "max_attempts", c.cfg.Attempts, "error", err)
		}),
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(c.cfg.MinDelay),
		retry.MaxDelay(c.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// Prompt builds the classification prompt. Accounts must be sorted.
func Prompt(tx api.Transaction, accounts []string) string {
	var sb strings.Builder
	sb.WriteString("你是一个专业的 Beancount 记账分类助手。\n\n")
	sb.WriteString("【交易信息】\n")
	fmt.Fprintf(&sb, "1. 账单原始分类（最重要的参考）：%s\n", tx.RawCategory)
	fmt.Fprintf(&sb, "2. 商户名称：%s\n", tx.Payee)
	fmt.Fprintf(&sb, "3. 商品信息：%s\n\n", tx.Note)
	sb.WriteString("【可选账户】\n")
	sb.WriteString(strings.Join(accounts, "\n"))
	sb.WriteString("\n\n【要求】\n")
	sb.WriteString("1. 优先根据账单原始分类推断。\n")
	sb.WriteString("2. 只能从可选账户中选择一个。\n")
	sb.WriteString("3. 无法确定时，选择 Expenses: 开头的支出账户。\n")
	sb.WriteString("4. 只返回账户名本身，不要解释，不要标点。\n")
	return sb.String()
}
