package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// stringList is a custom flag type for repeatable flags such as -env.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ", ")
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// ParseFlags parses command-line arguments (without the program name) and
// returns a Config. A -config file, when given, is applied before the other
// flags so that flags win.
func ParseFlags(args []string) (*Config, error) {
	return parseFlags(args, os.Stderr)
}

func parseFlags(args []string, usageOut io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	if path := findConfigFlag(args); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	fs := flag.NewFlagSet("go-procsup", flag.ContinueOnError)
	fs.SetOutput(usageOut)

	var env stringList
	var shellArgs string

	// Custom usage message
	fs.Usage = func() {
		fmt.Fprintf(usageOut, `go-procsup - supervise shell processes over HTTP, with output capture

Usage:
  go-procsup [flags]

API Flags:
`)
		// Print flags by category
		printFlagCategory(fs, usageOut, []string{"listen"})

		fmt.Fprintf(usageOut, "\nProcess Flags:\n")
		printFlagCategory(fs, usageOut, []string{"shell", "shell-args", "env", "cwd", "max-output-lines", "sample-resources"})

		fmt.Fprintf(usageOut, "\nTiming:\n")
		printFlagCategory(fs, usageOut, []string{"grace-period", "signal-settle", "drain-timeout", "shutdown-timeout"})

		fmt.Fprintf(usageOut, "\nStartup Processes:\n")
		printFlagCategory(fs, usageOut, []string{"startup-rate", "startup-jitter"})

		fmt.Fprintf(usageOut, "\nObservability:\n")
		printFlagCategory(fs, usageOut, []string{"metrics", "v", "log-format", "log-level", "prom-process-metrics"})

		fmt.Fprintf(usageOut, "\nDashboard:\n")
		printFlagCategory(fs, usageOut, []string{"tui"})

		fmt.Fprintf(usageOut, "\nConfiguration & Diagnostics:\n")
		printFlagCategory(fs, usageOut, []string{"config", "print-config", "skip-preflight"})

		fmt.Fprintf(usageOut, `
Examples:
  # API on localhost, metrics on :17091
  go-procsup

  # Live dashboard with processes from a file
  go-procsup -config procs.yaml -tui

  # Launch and read back over HTTP
  curl -s -XPOST localhost:7070/v1/processes -d '{"command":"ping -c3 localhost"}'
  curl -s 'localhost:7070/v1/processes/ping-1/output?format=text'

`)
	}

	// API
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP API address (empty disables the API)")

	// Processes
	fs.StringVar(&cfg.Shell, "shell", cfg.Shell, "Shell used to run commands")
	fs.StringVar(&shellArgs, "shell-args", strings.Join(cfg.ShellArgs, " "), "Arguments placed before the command string")
	fs.Var(&env, "env", "Extra KEY=VALUE environment for every process (can repeat)")
	fs.StringVar(&cfg.DefaultCwd, "cwd", cfg.DefaultCwd, "Default working directory (empty = supervisor's)")
	fs.IntVar(&cfg.MaxOutputLines, "max-output-lines", cfg.MaxOutputLines, "Default output lines kept per process")
	fs.BoolVar(&cfg.SampleResources, "sample-resources", cfg.SampleResources, "Include RSS and CPU in process listings")

	// Timing
	fs.DurationVar(&cfg.GracePeriod, "grace-period", cfg.GracePeriod, "Wait after launch before returning early output")
	fs.DurationVar(&cfg.SignalSettle, "signal-settle", cfg.SignalSettle, "Wait after a kill signal before reporting status")
	fs.DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "Max wait for output pipes after a process exits")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Wait for processes on exit before SIGKILL")

	// Startup
	fs.IntVar(&cfg.StartupRate, "startup-rate", cfg.StartupRate, "Configured processes started per second")
	fs.DurationVar(&cfg.StartupJitter, "startup-jitter", cfg.StartupJitter, "Random jitter per startup process")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty disables)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging (mirrors process output at debug level)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)
	fs.BoolVar(&cfg.PromProcessMetrics, "prom-process-metrics", cfg.PromProcessMetrics,
		"Enable per-process Prometheus metrics (WARNING: one series per process id)")

	// TUI (Terminal User Interface)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Configuration & Diagnostics
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file (flags override it)")
	fs.BoolVar(&cfg.PrintConfig, "print-config", cfg.PrintConfig, "Print the effective config as YAML and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Parse
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg.ShellArgs = strings.Fields(shellArgs)
	cfg.Env = append(cfg.Env, env...)

	return cfg, nil
}

// findConfigFlag returns the value of -config/--config in args, if any.
func findConfigFlag(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(w, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(w)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
