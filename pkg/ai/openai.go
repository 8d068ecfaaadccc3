package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI calls any OpenAI-compatible chat completions endpoint, including
// DeepSeek and local gateways.
type OpenAI struct {
	client  *openai.Client
	timeout time.Duration
}

// NewOpenAI creates an OpenAI-compatible client.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), timeout: timeout}
}

// Provider implements Completer.
func (c *OpenAI) Provider() string { return ProviderOpenAI }

// Complete sends req as a single user message and returns the first choice.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", newError(ProviderOpenAI, openAIStatus(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", newError(ProviderOpenAI, 0, errEmptyResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
