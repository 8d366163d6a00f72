package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds the figures shown in the shutdown summary.
type SummaryConfig struct {
	// Duration is how long the supervisor ran
	Duration time.Duration

	// InstanceID identifies this supervisor run
	InstanceID string

	// Launched is the number of accepted launches, including spawn failures
	Launched int64

	// Duplicates is the number of launches rejected for a duplicate id
	Duplicates int64

	// Terminated is the number of processes still running at shutdown
	Terminated int

	// ExitCodes maps exit codes to counts (from metrics.Collector)
	ExitCodes map[int]int64

	// Signals maps signal names (SIGTERM, ...) to delivery counts
	Signals map[string]int64

	// OutputLines maps stream names to captured line counts
	OutputLines map[string]int64

	// Lifetimes of exited processes
	Lifetimes LifetimeSnapshot

	// ListenAddr and MetricsAddr are the API and metrics endpoints
	ListenAddr  string
	MetricsAddr string
}

// FormatShutdownSummary formats the summary printed when the supervisor exits.
func FormatShutdownSummary(cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                          go-procsup Shutdown Summary\n")
	b.WriteString(ruleHeavy + "\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	if cfg.InstanceID != "" {
		fmt.Fprintf(&b, "Instance:               %s\n", cfg.InstanceID)
	}
	fmt.Fprintf(&b, "Processes Launched:     %s\n", FormatNumber(cfg.Launched))
	if cfg.Duplicates > 0 {
		fmt.Fprintf(&b, "Duplicate Rejections:   %s\n", FormatNumber(cfg.Duplicates))
	}
	fmt.Fprintf(&b, "Terminated at Shutdown: %d\n\n", cfg.Terminated)

	if cfg.Lifetimes.Count > 0 {
		section(&b, "Lifetime Distribution")
		fmt.Fprintf(&b, "  Exited Processes:     %s\n", FormatNumber(cfg.Lifetimes.Count))
		fmt.Fprintf(&b, "  Mean:                 %s\n", FormatLifetime(cfg.Lifetimes.Mean))
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatLifetime(cfg.Lifetimes.P50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatLifetime(cfg.Lifetimes.P95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatLifetime(cfg.Lifetimes.P99))
		fmt.Fprintf(&b, "  Max:                  %s\n", FormatLifetime(cfg.Lifetimes.Max))
		b.WriteString("\n")
	}

	if len(cfg.ExitCodes) > 0 {
		section(&b, "Exit Codes")

		// Sort exit codes for consistent output
		codes := make([]int, 0, len(cfg.ExitCodes))
		for code := range cfg.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, ExitCodeLabel(code), cfg.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if len(cfg.Signals) > 0 {
		section(&b, "Signals Sent")
		for _, name := range sortedKeys(cfg.Signals) {
			fmt.Fprintf(&b, "  %-20s %d\n", name, cfg.Signals[name])
		}
		b.WriteString("\n")
	}

	if len(cfg.OutputLines) > 0 {
		section(&b, "Captured Output")
		for _, stream := range sortedKeys(cfg.OutputLines) {
			fmt.Fprintf(&b, "  %-20s %s lines\n", stream, FormatNumber(cfg.OutputLines[stream]))
		}
		b.WriteString("\n")
	}

	if cfg.ListenAddr != "" {
		fmt.Fprintf(&b, "API endpoint was:     http://%s/v1\n", cfg.ListenAddr)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(ruleHeavy)
	return b.String()
}

func section(b *strings.Builder, title string) {
	pad := (len(ruleLight)/3 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(ruleLight)
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(ruleLight + "\n")
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExitCodeLabel returns a human-readable label for common exit codes.
func ExitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 127:
		return "(not found)"
	case 130:
		return "(SIGINT)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatLifetime formats a process lifetime: milliseconds below a second,
// one decimal of seconds below a minute, HH:MM:SS above.
func FormatLifetime(d time.Duration) string {
	switch {
	case d < time.Second:
		return FormatMs(d)
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return FormatDuration(d)
	}
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
