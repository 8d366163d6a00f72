// Package config provides configuration management for go-procsup.
//
// Values are layered: DefaultConfig, then an optional YAML file (-config),
// then command-line flags.
package config

import "time"

// Config holds all configuration options for the supervisor.
type Config struct {
	// API
	ListenAddr string `yaml:"listen"`

	// Processes
	Shell           string        `yaml:"shell"`
	ShellArgs       []string      `yaml:"shell_args"`
	Env             []string      `yaml:"env"`
	DefaultCwd      string        `yaml:"cwd"`
	MaxOutputLines  int           `yaml:"max_output_lines"`
	GracePeriod     time.Duration `yaml:"grace_period"`
	SignalSettle    time.Duration `yaml:"signal_settle"`
	DrainTimeout    time.Duration `yaml:"drain_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SampleResources bool          `yaml:"sample_resources"`

	// Startup processes, launched in order once the supervisor is up
	Launch        []LaunchSpec  `yaml:"launch"`
	StartupRate   int           `yaml:"startup_rate"`
	StartupJitter time.Duration `yaml:"startup_jitter"`

	// Observability
	MetricsAddr        string `yaml:"metrics"`
	Verbose            bool   `yaml:"verbose"`
	LogFormat          string `yaml:"log_format"` // json, text
	LogLevel           string `yaml:"log_level"`  // debug, info, warn, error
	PromProcessMetrics bool   `yaml:"prom_process_metrics"`

	// Dashboard
	TUIEnabled bool `yaml:"tui"`

	// Diagnostics
	ConfigFile    string `yaml:"-"`
	PrintConfig   bool   `yaml:"-"`
	SkipPreflight bool   `yaml:"skip_preflight"`
}

// LaunchSpec is one process started with the supervisor.
type LaunchSpec struct {
	Command        string `yaml:"command"`
	ID             string `yaml:"id"`
	Cwd            string `yaml:"cwd"`
	MaxOutputLines int    `yaml:"max_output_lines"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// API
		ListenAddr: "127.0.0.1:7070",

		// Processes
		Shell:           "/bin/sh",
		ShellArgs:       []string{"-c"},
		MaxOutputLines:  500,
		GracePeriod:     500 * time.Millisecond,
		SignalSettle:    500 * time.Millisecond,
		DrainTimeout:    2 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		// Startup
		StartupRate: 5,

		// Observability
		MetricsAddr: "0.0.0.0:17091",
		LogFormat:   "json",
		LogLevel:    "info",

		// Dashboard
		TUIEnabled: false,
	}
}
