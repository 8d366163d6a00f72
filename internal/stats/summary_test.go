package stats

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Table-Driven Tests: Formatting Functions
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "00:00:00"},
		{"one second", time.Second, "00:00:01"},
		{"one minute", time.Minute, "00:01:00"},
		{"one hour", time.Hour, "01:00:00"},
		{"mixed", 2*time.Hour + 30*time.Minute + 45*time.Second, "02:30:45"},
		{"24 hours", 24 * time.Hour, "24:00:00"},
		{"sub-second", 500 * time.Millisecond, "00:00:00"},
		{"59 seconds", 59 * time.Second, "00:00:59"},
		{"59 minutes", 59 * time.Minute, "00:59:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"zero", 0, "0"},
		{"small", 123, "123"},
		{"999", 999, "999"},
		{"1K", 1000, "1.0K"},
		{"1.5K", 1500, "1.5K"},
		{"10K", 10000, "10.0K"},
		{"999K", 999000, "999.0K"},
		{"1M", 1000000, "1.0M"},
		{"1.5M", 1500000, "1.5M"},
		{"10M", 10000000, "10.0M"},
		{"negative", -100, "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNumber(tt.n); got != tt.want {
				t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"zero", 0, "0 B"},
		{"small", 123, "123 B"},
		{"999 bytes", 999, "999 B"},
		{"1 KB", 1000, "1.00 KB"},
		{"1.5 KB", 1500, "1.50 KB"},
		{"10 KB", 10000, "10.00 KB"},
		{"1 MB", 1000000, "1.00 MB"},
		{"1.5 MB", 1500000, "1.50 MB"},
		{"1 GB", 1000000000, "1.00 GB"},
		{"1.5 GB", 1500000000, "1.50 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBytes(tt.n); got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "0 ms"},
		{"1 ms", time.Millisecond, "1 ms"},
		{"100 ms", 100 * time.Millisecond, "100 ms"},
		{"1 second", time.Second, "1000 ms"},
		{"sub-ms", 500 * time.Microsecond, "500 µs"},
		{"1 us", time.Microsecond, "1 µs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMs(tt.duration); got != tt.want {
				t.Errorf("FormatMs(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatLifetime(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"sub-second", 250 * time.Millisecond, "250 ms"},
		{"seconds", 2500 * time.Millisecond, "2.5s"},
		{"minutes", 90 * time.Second, "00:01:30"},
		{"hours", 2 * time.Hour, "02:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLifetime(tt.d); got != tt.want {
				t.Errorf("FormatLifetime(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestExitCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "(clean)"},
		{1, "(error)"},
		{127, "(not found)"},
		{130, "(SIGINT)"},
		{137, "(SIGKILL)"},
		{143, "(SIGTERM)"},
		{2, ""},
		{-1, ""},
		{255, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			if got := ExitCodeLabel(tt.code); got != tt.want {
				t.Errorf("ExitCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: FormatShutdownSummary
// =============================================================================

func TestFormatShutdownSummary_Minimal(t *testing.T) {
	result := FormatShutdownSummary(SummaryConfig{
		Duration:    5 * time.Minute,
		MetricsAddr: "localhost:9090",
	})

	wants := []string{
		"go-procsup Shutdown Summary",
		"Run Duration:           00:05:00",
		"Processes Launched:     0",
		"Terminated at Shutdown: 0",
		"Metrics endpoint was: http://localhost:9090/metrics",
	}
	for _, want := range wants {
		if !strings.Contains(result, want) {
			t.Errorf("summary missing %q\n%s", want, result)
		}
	}
	for _, absent := range []string{"Lifetime Distribution", "Exit Codes", "Signals Sent", "Duplicate"} {
		if strings.Contains(result, absent) {
			t.Errorf("summary should not contain %q when empty", absent)
		}
	}
}

func TestFormatShutdownSummary_Full(t *testing.T) {
	cfg := SummaryConfig{
		Duration:   time.Hour,
		InstanceID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		Launched:   12,
		Duplicates: 2,
		Terminated: 3,
		ExitCodes: map[int]int64{
			143: 3,
			0:   8,
			1:   1,
		},
		Signals:     map[string]int64{"SIGTERM": 3, "SIGKILL": 1},
		OutputLines: map[string]int64{"stdout": 1500, "stderr": 20},
		Lifetimes: LifetimeSnapshot{
			Count: 12,
			Mean:  20 * time.Second,
			P50:   15 * time.Second,
			P95:   55 * time.Second,
			P99:   2 * time.Minute,
			Max:   2 * time.Minute,
		},
		ListenAddr: "127.0.0.1:7070",
	}

	result := FormatShutdownSummary(cfg)

	wants := []string{
		"Instance:               1b4e28ba",
		"Processes Launched:     12",
		"Duplicate Rejections:   2",
		"Terminated at Shutdown: 3",
		"Lifetime Distribution",
		"P50 (median):         15.0s",
		"P99:                  00:02:00",
		"Exit Codes",
		"(SIGTERM)",
		"Signals Sent",
		"Captured Output",
		"1.5K lines",
		"API endpoint was:     http://127.0.0.1:7070/v1",
	}
	for _, want := range wants {
		if !strings.Contains(result, want) {
			t.Errorf("summary missing %q", want)
		}
	}

	// Exit codes and signals are sorted.
	if strings.Index(result, "  0 (clean)") > strings.Index(result, "143 (SIGTERM)") {
		t.Error("exit codes not sorted")
	}
	if strings.Index(result, "SIGKILL") > strings.Index(result, "SIGTERM  ") {
		t.Error("signals not sorted")
	}
}
