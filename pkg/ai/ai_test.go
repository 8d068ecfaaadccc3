package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ArionMiles/beanbill/pkg/api"
)

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "deepseek-chat",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(body)
}

func TestOpenAI_Complete(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: got %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization: got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse("  Expenses:Food  \n"))
	}))
	defer srv.Close()

	c := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	answer, err := c.Complete(context.Background(), Request{
		Model:       "deepseek-chat",
		Prompt:      "classify",
		Temperature: 0.1,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if answer != "Expenses:Food" {
		t.Errorf("answer: got %q, want Expenses:Food", answer)
	}
	if got.Model != "deepseek-chat" || got.MaxTokens != 100 {
		t.Errorf("request: got model=%s max_tokens=%d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "classify" {
		t.Errorf("messages: got %+v", got.Messages)
	}
}

func TestOpenAI_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		delay         time.Duration
		wantTransient bool
		wantRateLimit bool
	}{
		{"server error", http.StatusInternalServerError, 0, false, false},
		{"bad gateway", http.StatusBadGateway, 0, false, false},
		{"request timeout status", http.StatusRequestTimeout, 0, false, false},
		{"rate limited", http.StatusTooManyRequests, 0, false, true},
		{"unauthorized", http.StatusUnauthorized, 0, false, false},
		{"bad request", http.StatusBadRequest, 0, false, false},
		{"timeout", http.StatusOK, 500 * time.Millisecond, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.delay > 0 {
					select {
					case <-time.After(tc.delay):
					case <-r.Context().Done():
						return
					}
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				if tc.status == http.StatusOK {
					fmt.Fprint(w, chatResponse("Expenses:Food"))
					return
				}
				fmt.Fprintf(w, `{"error":{"message":"failure %d","type":"api_error"}}`, tc.status)
			}))
			defer srv.Close()

			c := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
			_, err := c.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
			if err == nil {
				t.Fatal("expected error")
			}

			var aiErr *Error
			if !errors.As(err, &aiErr) {
				t.Fatalf("error type: got %T, want *ai.Error", err)
			}
			if got := IsTransient(err); got != tc.wantTransient {
				t.Errorf("IsTransient: got %v, want %v (%v)", got, tc.wantTransient, err)
			}
			if got := IsRateLimited(err); got != tc.wantRateLimit {
				t.Errorf("IsRateLimited: got %v, want %v", got, tc.wantRateLimit)
			}
			if tc.status != http.StatusOK && aiErr.StatusCode != tc.status {
				t.Errorf("status: got %d, want %d", aiErr.StatusCode, tc.status)
			}
		})
	}
}

func TestOpenAI_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOpenAI(Config{APIKey: "k", BaseURL: url})
	_, err := c.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if !IsTransient(err) {
		t.Errorf("IsTransient: got false for %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("calling: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"plain error", errors.New("invalid model"), false},
		{"transient ai error", &Error{Provider: "x", Transient: true, Err: context.DeadlineExceeded}, true},
		{"server error", newError("x", 503, errors.New("down")), false},
		{"no response", newError("x", 0, context.DeadlineExceeded), true},
		{"permanent ai error", &Error{Provider: "x", StatusCode: 401, Err: errors.New("no")}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("slow down")
	err := fmt.Errorf("classify: %w", newError("openai", http.StatusTooManyRequests, cause))
	if !errors.Is(err, api.ErrRateLimit) {
		t.Error("429 should wrap api.ErrRateLimit")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should stay reachable")
	}
	if errors.Is(newError("openai", 500, cause), api.ErrRateLimit) {
		t.Error("500 should not wrap api.ErrRateLimit")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"", ProviderOpenAI, false},
		{ProviderOpenAI, ProviderOpenAI, false},
		{ProviderAnthropic, ProviderAnthropic, false},
		{ProviderGemini, ProviderGemini, false},
		{"cohere", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.provider, func(t *testing.T) {
			c, err := New(ctx, Config{Provider: tc.provider, APIKey: "k"}, nil)
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if c.Provider() != tc.want {
				t.Errorf("provider: got %s, want %s", c.Provider(), tc.want)
			}
		})
	}
}
