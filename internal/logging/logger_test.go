package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},        // Default
		{"invalid", slog.LevelInfo}, // Default for unknown
		{"trace", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := parseLevel(tc.input)
			if result != tc.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tc.input, result, tc.expected)
			}
		})
	}
}

func TestNewLoggerWithWriter_Formats(t *testing.T) {
	testCases := []struct {
		format string
		json   bool
	}{
		{"json", true},
		{"JSON", true},
		{"text", false},
		{"TEXT", false},
		{"", true},
		{"invalid", true},
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf, tc.format, "info")
			logger.Info("process_launched", "id", "echo-1")

			output := strings.TrimSpace(buf.String())
			isJSON := strings.HasPrefix(output, "{")
			if isJSON != tc.json {
				t.Errorf("format %q produced %q, want json=%v", tc.format, output, tc.json)
			}
			if !tc.json && !strings.Contains(output, "id=echo-1") {
				t.Errorf("Expected id=echo-1 in text output, got: %s", output)
			}
			if tc.json && !strings.Contains(output, `"id":"echo-1"`) {
				t.Errorf("Expected \"id\":\"echo-1\" in JSON output, got: %s", output)
			}
		})
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	testCases := []struct {
		level   string
		logged  []string
		dropped []string
	}{
		{"debug", []string{"debug msg", "info msg", "warn msg", "error msg"}, nil},
		{"info", []string{"info msg", "warn msg", "error msg"}, []string{"debug msg"}},
		{"warn", []string{"warn msg", "error msg"}, []string{"debug msg", "info msg"}},
		{"error", []string{"error msg"}, []string{"debug msg", "info msg", "warn msg"}},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf, "text", tc.level)

			logger.Debug("debug msg")
			logger.Info("info msg")
			logger.Warn("warn msg")
			logger.Error("error msg")

			output := buf.String()
			for _, msg := range tc.logged {
				if !strings.Contains(output, msg) {
					t.Errorf("%s level should log %q", tc.level, msg)
				}
			}
			for _, msg := range tc.dropped {
				if strings.Contains(output, msg) {
					t.Errorf("%s level should not log %q", tc.level, msg)
				}
			}
		})
	}
}

func TestNew_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")
	logger.Debug("with source")

	if !strings.Contains(buf.String(), "source=") {
		t.Errorf("debug logger should add source, got: %s", buf.String())
	}
}

func TestNew_DefaultsToStderrJSON(t *testing.T) {
	logger := New(Options{})
	if logger == nil {
		t.Fatal("New returned nil")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default level should enable info")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default level should not enable debug")
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "text", Level: "error", Verbose: true, Output: &buf})

	logger.Debug("debug msg")
	if !strings.Contains(buf.String(), "debug msg") {
		t.Errorf("verbose logger should log debug messages, got: %s", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("text", "warn", false)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("warn logger should not enable info")
	}
}

func TestSetDefault(t *testing.T) {
	originalDefault := slog.Default()
	defer slog.SetDefault(originalDefault)

	var buf bytes.Buffer
	SetDefault(NewLoggerWithWriter(&buf, "text", "info"))

	slog.Info("from default logger")
	if !strings.Contains(buf.String(), "from default logger") {
		t.Error("SetDefault did not set the default logger")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// Should not panic
	logger.Error("dropped")
}
