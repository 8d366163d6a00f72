package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-procsup/internal/api"
	"github.com/randomizedcoder/go-procsup/internal/config"
	"github.com/randomizedcoder/go-procsup/internal/logging"
	"github.com/randomizedcoder/go-procsup/internal/metrics"
	"github.com/randomizedcoder/go-procsup/internal/output"
	"github.com/randomizedcoder/go-procsup/internal/preflight"
	"github.com/randomizedcoder/go-procsup/internal/process"
	"github.com/randomizedcoder/go-procsup/internal/stats"
	"github.com/randomizedcoder/go-procsup/internal/supervisor"
	"github.com/randomizedcoder/go-procsup/internal/tui"
)

// minPreflightProcesses sizes the limit checks when few startup processes
// are configured; more are usually launched through the API later.
const minPreflightProcesses = 64

// Orchestrator coordinates the registry with its API, dashboard and metrics.
type Orchestrator struct {
	config     *config.Config
	logger     *slog.Logger
	version    string
	instanceID string
	out        io.Writer

	runner        *process.ShellRunner
	registry      *supervisor.Registry
	rampScheduler *RampScheduler
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	api           *api.Server

	startTime time.Time
}

// New creates an Orchestrator whose metrics use the default Prometheus
// registry.
func New(cfg *config.Config, logger *slog.Logger, version string) *Orchestrator {
	return newOrchestrator(cfg, logger, version, prometheus.DefaultRegisterer, nil)
}

// NewWithRegistry creates an Orchestrator with a custom Prometheus registry.
// Useful for testing.
func NewWithRegistry(cfg *config.Config, logger *slog.Logger, version string, reg *prometheus.Registry) *Orchestrator {
	return newOrchestrator(cfg, logger, version, reg, reg)
}

func newOrchestrator(cfg *config.Config, logger *slog.Logger, version string, registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Orchestrator {
	instanceID := uuid.NewString()
	logger = logger.With("instance", instanceID)

	runner := process.NewShellRunner(&process.ShellConfig{
		Path: cfg.Shell,
		Args: cfg.ShellArgs,
		Env:  cfg.Env,
	})

	collector := metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:           version,
		InstanceID:        instanceID,
		PerProcessMetrics: cfg.PromProcessMetrics,
	}, registerer)

	mirror := logging.NewOutputMirror(logger, cfg.Verbose)

	registry := supervisor.New(supervisor.Config{
		Runner:                runner,
		Logger:                logger,
		DefaultCwd:            cfg.DefaultCwd,
		DefaultMaxOutputLines: cfg.MaxOutputLines,
		GracePeriod:           cfg.GracePeriod,
		SignalSettle:          cfg.SignalSettle,
		DrainTimeout:          cfg.DrainTimeout,
		SampleResources:       cfg.SampleResources,
		Hooks: supervisor.ChainHooks(
			collector.Hooks(),
			supervisor.Hooks{
				OnOutputLine: func(id string, stream output.Stream, line string) {
					mirror.HandleLine(id, string(stream), line)
				},
			},
		),
	})
	collector.WatchRegistry(registry)

	o := &Orchestrator{
		config:        cfg,
		logger:        logger,
		version:       version,
		instanceID:    instanceID,
		out:           os.Stdout,
		runner:        runner,
		registry:      registry,
		rampScheduler: NewRampScheduler(cfg.StartupRate, cfg.StartupJitter),
		metrics:       collector,
	}

	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, gatherer, logger)
	}

	if cfg.ListenAddr != "" {
		o.api = api.New(api.Config{
			Listen:       cfg.ListenAddr,
			InstanceID:   instanceID,
			Version:      version,
			WriteTimeout: apiWriteTimeout(cfg),
		}, registry, logger)
	}

	return o
}

// apiWriteTimeout leaves room for a launch grace period plus a kill settle.
func apiWriteTimeout(cfg *config.Config) time.Duration {
	timeout := 30 * time.Second
	if need := cfg.GracePeriod + cfg.SignalSettle + 10*time.Second; need > timeout {
		timeout = need
	}
	return timeout
}

// Run serves the supervisor. It blocks until a signal, ctx cancellation, an
// API failure or the dashboard being closed, then terminates every tracked
// process and prints the shutdown summary.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	// Run preflight checks
	if !o.config.SkipPreflight {
		result := preflight.RunAll(preflight.Options{
			Shell:             o.config.Shell,
			ShellArgs:         o.config.ShellArgs,
			DefaultCwd:        o.config.DefaultCwd,
			ExpectedProcesses: max(len(o.config.Launch), minPreflightProcesses),
		})
		preflight.PrintResults(o.out, result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	// Start metrics server
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var apiErr chan error
	if o.api != nil {
		apiErr = make(chan error, 1)
		go func() {
			apiErr <- o.api.Start(ctx)
		}()
	}

	startupDone := make(chan struct{})
	go func() {
		defer close(startupDone)
		o.launchStartup(ctx)
	}()

	var tuiDone chan error
	if o.config.TUIEnabled {
		tuiDone = make(chan error, 1)
		go func() {
			tuiDone <- tui.Run(ctx, tui.Config{
				Supervisor:  o.registry,
				InstanceID:  o.instanceID,
				Version:     o.version,
				ListenAddr:  o.config.ListenAddr,
				MetricsAddr: o.config.MetricsAddr,
			})
		}()
	}

	// Wait for completion signal
	var runErr error
	apiStopped := false
	select {
	case sig := <-sigCh:
		o.logger.Info("received_signal", "signal", sig.String())
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
	case err := <-apiErr:
		apiStopped = true
		if err != nil {
			runErr = err
		}
	case err := <-tuiDone:
		if err != nil {
			runErr = fmt.Errorf("dashboard failed: %w", err)
		} else {
			o.logger.Info("dashboard_closed")
		}
	}

	// Stop accepting requests before terminating processes
	cancel()
	<-startupDone
	if apiErr != nil && !apiStopped {
		if err := <-apiErr; err != nil {
			o.logger.Warn("api_server_shutdown_error", "error", err)
		}
	}

	terminated := 0
	for _, st := range o.registry.List() {
		if !st.Exited {
			terminated++
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), o.config.ShutdownTimeout)
	defer shutdownCancel()

	if err := o.registry.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("shutdown_incomplete", "error", err)
	}
	o.registry.Wait()

	if o.metricsServer != nil {
		metricsCtx, metricsCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.metricsServer.Shutdown(metricsCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
		metricsCancel()
	}

	o.printExitSummary(terminated)

	return runErr
}

// launchStartup launches the configured startup processes at the
// configured rate.
func (o *Orchestrator) launchStartup(ctx context.Context) {
	specs := o.config.Launch
	if len(specs) == 0 {
		return
	}

	o.logger.Info("startup_launching",
		"processes", len(specs),
		"rate", o.rampScheduler.Rate(),
		"estimated_duration", o.rampScheduler.EstimatedRampDuration(len(specs)).String(),
	)

	for i, spec := range specs {
		// Check for cancellation
		select {
		case <-ctx.Done():
			o.logger.Info("startup_cancelled", "launched", i, "target", len(specs))
			return
		default:
		}

		// Don't wait for the first process
		if i > 0 {
			if err := o.rampScheduler.Schedule(ctx, i); err != nil {
				o.logger.Info("startup_cancelled", "launched", i, "target", len(specs))
				return
			}
		}

		res, err := o.registry.Launch(supervisor.LaunchRequest{
			Command:        spec.Command,
			ID:             spec.ID,
			Cwd:            spec.Cwd,
			MaxOutputLines: spec.MaxOutputLines,
		})
		if err != nil {
			o.logger.Error("startup_launch_failed", "index", i, "command", spec.Command, "error", err)
			continue
		}

		o.logger.Info("startup_launched",
			"id", res.Status.ID,
			"pid", res.Status.PID,
			"status", res.Status.StatusText(),
		)
	}

	o.logger.Info("startup_complete",
		"processes", len(specs),
		"tracked", o.registry.Len(),
	)
}

// printExitSummary prints a summary of the supervisor run.
func (o *Orchestrator) printExitSummary(terminated int) {
	summary := o.metrics.GenerateSummary()

	fmt.Fprint(o.out, stats.FormatShutdownSummary(stats.SummaryConfig{
		Duration:    time.Since(o.startTime),
		InstanceID:  o.instanceID,
		Launched:    summary.Launched,
		Duplicates:  summary.Duplicates,
		Terminated:  terminated,
		ExitCodes:   summary.ExitCodes,
		Signals:     summary.Signals,
		OutputLines: summary.OutputLines,
		Lifetimes:   summary.Lifetimes,
		ListenAddr:  o.config.ListenAddr,
		MetricsAddr: o.config.MetricsAddr,
	}))
}

// Registry returns the process registry for external access.
func (o *Orchestrator) Registry() *supervisor.Registry {
	return o.registry
}

// Runner returns the shell runner for external access.
func (o *Orchestrator) Runner() *process.ShellRunner {
	return o.runner
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// InstanceID returns the id of this supervisor run.
func (o *Orchestrator) InstanceID() string {
	return o.instanceID
}

// APIAddr returns the bound API address, or "" when the API is disabled.
func (o *Orchestrator) APIAddr() string {
	if o.api == nil {
		return ""
	}
	return o.api.Addr()
}
