// Package main provides the go-procsup CLI entry point.
//
// go-procsup launches shell commands as child processes, keeps their recent
// output, and lets clients read, write, signal and clean them up over an
// HTTP API or a terminal dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/randomizedcoder/go-procsup/internal/config"
	"github.com/randomizedcoder/go-procsup/internal/logging"
	"github.com/randomizedcoder/go-procsup/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-procsup
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-procsup %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.Discard()
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Handle -print-config mode
	if cfg.PrintConfig {
		data, err := config.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding config: %v\n", err)
			return 1
		}
		os.Stdout.Write(data)
		return 0
	}

	// Log startup
	logger.Info("starting",
		"version", version,
		"listen", cfg.ListenAddr,
		"shell", cfg.Shell+" "+strings.Join(cfg.ShellArgs, " "),
		"startup_processes", len(cfg.Launch),
		"metrics_addr", cfg.MetricsAddr,
	)

	// Print startup banner
	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	// Create and run orchestrator
	orch := orchestrator.New(cfg, logger, version)
	if err := orch.Run(context.Background()); err != nil {
		logger.Error("orchestrator_failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                           go-procsup                              ║")
	fmt.Println("║          Shell Process Supervision with Output Capture            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	if cfg.ListenAddr != "" {
		fmt.Printf("  API:         http://%s/v1/processes\n", cfg.ListenAddr)
	}
	fmt.Printf("  Shell:       %s %s\n", cfg.Shell, strings.Join(cfg.ShellArgs, " "))
	if cfg.DefaultCwd != "" {
		fmt.Printf("  Directory:   %s\n", cfg.DefaultCwd)
	}
	fmt.Printf("  Output:      last %d lines per process\n", cfg.MaxOutputLines)
	if len(cfg.Launch) > 0 {
		fmt.Printf("  Startup:     %d processes at %d/sec\n", len(cfg.Launch), cfg.StartupRate)
	}
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
