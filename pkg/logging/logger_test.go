package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want %s", cfg.Level, LevelInfo)
	}
	if cfg.Pretty {
		t.Error("default output should be JSON")
	}
	if cfg.Output == nil {
		t.Error("default output should be stderr")
	}
}

func TestSetup_WritesJSONLines(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: buf})

	logger.Info().Str("run_id", "r1").Int("records", 25).Msg("Export completed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "Export completed" || entry["run_id"] != "r1" {
		t.Errorf("entry = %v", entry)
	}
	if entry["records"] != float64(25) {
		t.Errorf("records = %v, want 25", entry["records"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry should carry a timestamp")
	}
}

func TestZerologLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := zerologLevel(tt.input); got != tt.want {
				t.Errorf("zerologLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewLogger_AddsComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("cursor")
	logger.Info().Msg("Scroll cursor released")

	output := buf.String()
	if !strings.Contains(output, `"component":"cursor"`) {
		t.Errorf("output should carry the component: %q", output)
	}
	if !strings.Contains(output, "Scroll cursor released") {
		t.Errorf("output should carry the message: %q", output)
	}
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})
	defer Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}})

	logger := NewLogger("batch-fetcher")
	logger.Debug().Msg("batch written")
	logger.Info().Msg("progress")
	logger.Warn().Msg("retrying")
	logger.Error().Msg("retry attempts exhausted")

	output := buf.String()
	for _, filtered := range []string{"batch written", "progress"} {
		if strings.Contains(output, filtered) {
			t.Errorf("%q should be filtered at warn level", filtered)
		}
	}
	for _, kept := range []string{"retrying", "retry attempts exhausted"} {
		if !strings.Contains(output, kept) {
			t.Errorf("%q should be written at warn level", kept)
		}
	}
}

func TestSetup_PrettyOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str("run_id", "r1").Msg("Scroll cursor opened")

	output := buf.String()
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Expected console output, got JSON: %q", output)
	}
	if !strings.Contains(output, "Scroll cursor opened") {
		t.Errorf("Expected output to contain message, got %q", output)
	}
}
