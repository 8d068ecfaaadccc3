package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetup_JSON(t *testing.T) {
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	var buf bytes.Buffer
	logger := Setup(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})
	logger.Info("hidden")
	logger.Warn("shown", "file", "bill.csv")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines: got %d, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if rec["msg"] != "shown" || rec["file"] != "bill.csv" {
		t.Errorf("record: got %v", rec)
	}
}

func TestFromSettings_File(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	path := filepath.Join(t.TempDir(), "logs", "beanbill.log")
	logger, closer, err := FromSettings("debug", false, path)
	if err != nil {
		t.Fatalf("FromSettings: %v", err)
	}
	logger.Debug("classified", "payee", "星巴克")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "payee=星巴克") {
		t.Errorf("log file: got %q", data)
	}
}

func TestFromSettings_EnvLevelWins(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })
	logger, closer, err := FromSettings("debug", true, "")
	if err != nil {
		t.Fatalf("FromSettings: %v", err)
	}
	defer closer.Close()

	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn enabled: got true, want LOG_LEVEL=ERROR to win")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("error enabled: got false, want true")
	}
}
