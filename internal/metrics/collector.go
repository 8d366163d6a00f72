// Package metrics provides Prometheus metrics for go-procsup.
//
// Metrics are organized into two tiers:
//   - Tier 1 (always enabled): aggregate metrics whose cardinality does not
//     grow with the number of processes
//   - Tier 2 (optional, -prom-process-metrics): per-process output counters
//     labelled by process id, for debugging small fleets
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-procsup/internal/output"
	"github.com/randomizedcoder/go-procsup/internal/process"
	"github.com/randomizedcoder/go-procsup/internal/stats"
	"github.com/randomizedcoder/go-procsup/internal/supervisor"
)

// StatusSource is polled at scrape time for the process gauges.
type StatusSource interface {
	List() []supervisor.Status
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version    string
	InstanceID string

	// PerProcessMetrics enables Tier 2 metrics labelled by process id.
	PerProcessMetrics bool
}

// Collector manages all Prometheus metrics for the supervisor.
//
// Metrics are fields rather than package globals so that every collector can
// be registered against its own registry.
type Collector struct {
	perProcessEnabled bool
	startTime         time.Time

	// Tier 1
	info            *prometheus.GaugeVec
	launches        prometheus.Counter
	duplicates      prometheus.Counter
	exits           *prometheus.CounterVec
	signals         *prometheus.CounterVec
	removals        *prometheus.CounterVec
	outputLines     *prometheus.CounterVec
	lifetimeSeconds prometheus.Histogram
	lifetimeP50     prometheus.Gauge
	lifetimeP95     prometheus.Gauge
	lifetimeP99     prometheus.Gauge

	// Tier 2
	processOutputLines *prometheus.CounterVec

	lifetimes *stats.LifetimeTracker

	mu           sync.Mutex
	source       StatusSource
	totalLaunch  int64
	totalDupes   int64
	exitCodes    map[int]int64
	signalCounts map[string]int64
	streamLines  map[string]int64
	peakTracked  int
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		perProcessEnabled: cfg.PerProcessMetrics,
		startTime:         time.Now(),
		lifetimes:         stats.NewLifetimeTracker(),
		exitCodes:         make(map[int]int64),
		signalCounts:      make(map[string]int64),
		streamLines:       make(map[string]int64),

		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "procsup_info",
				Help: "Information about the supervisor (value always 1)",
			},
			[]string{"version", "instance"},
		),
		launches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procsup_launches_total",
			Help: "Accepted launches, including processes that failed to spawn",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procsup_launch_duplicate_total",
			Help: "Launches rejected because the id was already tracked",
		}),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procsup_exits_total",
				Help: "Process exits by exit code",
			},
			[]string{"code"},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procsup_signals_total",
				Help: "Signals delivered to process groups",
			},
			[]string{"signal"},
		),
		removals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procsup_removals_total",
				Help: "Processes dropped from the registry",
			},
			[]string{"reason"},
		),
		outputLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procsup_output_lines_total",
				Help: "Output lines captured",
			},
			[]string{"stream"},
		),
		lifetimeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "procsup_process_lifetime_seconds",
			Help:    "Process lifetime from spawn to observed exit",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		lifetimeP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procsup_process_lifetime_p50_seconds",
			Help: "Process lifetime 50th percentile",
		}),
		lifetimeP95: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procsup_process_lifetime_p95_seconds",
			Help: "Process lifetime 95th percentile",
		}),
		lifetimeP99: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procsup_process_lifetime_p99_seconds",
			Help: "Process lifetime 99th percentile",
		}),
	}

	tracked := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "procsup_tracked_processes",
			Help: "Processes currently held in the registry",
		},
		func() float64 {
			total, _ := c.counts()
			return float64(total)
		},
	)
	running := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "procsup_running_processes",
			Help: "Tracked processes that have not exited",
		},
		func() float64 {
			_, alive := c.counts()
			return float64(alive)
		},
	)

	// Register Tier 1 metrics (always)
	registry.MustRegister(
		c.info,
		c.launches,
		c.duplicates,
		c.exits,
		c.signals,
		c.removals,
		c.outputLines,
		c.lifetimeSeconds,
		c.lifetimeP50,
		c.lifetimeP95,
		c.lifetimeP99,
		tracked,
		running,
	)

	// Register Tier 2 metrics (optional)
	if cfg.PerProcessMetrics {
		c.processOutputLines = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procsup_process_output_lines_total",
				Help: "Output lines captured per process (requires -prom-process-metrics)",
			},
			[]string{"id", "stream"},
		)
		registry.MustRegister(c.processOutputLines)
	}

	c.info.WithLabelValues(cfg.Version, cfg.InstanceID).Set(1)

	return c
}

// WatchRegistry sets the source for the tracked and running gauges.
func (c *Collector) WatchRegistry(src StatusSource) {
	c.mu.Lock()
	c.source = src
	c.mu.Unlock()
}

// counts returns (tracked, running) from the watched source.
func (c *Collector) counts() (int, int) {
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()
	if src == nil {
		return 0, 0
	}

	list := src.List()
	alive := 0
	for _, st := range list {
		if !st.Exited {
			alive++
		}
	}

	c.mu.Lock()
	if len(list) > c.peakTracked {
		c.peakTracked = len(list)
	}
	c.mu.Unlock()

	return len(list), alive
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// ProcessLaunched records an accepted launch.
func (c *Collector) ProcessLaunched() {
	c.launches.Inc()

	c.mu.Lock()
	c.totalLaunch++
	c.mu.Unlock()
}

// DuplicateRejected records a launch refused for a duplicate id.
func (c *Collector) DuplicateRejected() {
	c.duplicates.Inc()

	c.mu.Lock()
	c.totalDupes++
	c.mu.Unlock()
}

// RecordExit records a process exit event.
func (c *Collector) RecordExit(exitCode int, lifetime time.Duration) {
	c.exits.WithLabelValues(strconv.Itoa(exitCode)).Inc()
	c.lifetimeSeconds.Observe(lifetime.Seconds())

	c.lifetimes.Record(lifetime)
	p50, p95, p99 := c.lifetimes.Percentiles()
	c.lifetimeP50.Set(p50.Seconds())
	c.lifetimeP95.Set(p95.Seconds())
	c.lifetimeP99.Set(p99.Seconds())

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.mu.Unlock()
}

// RecordSignal records a delivered signal.
func (c *Collector) RecordSignal(sig process.Signal) {
	name := sig.String()
	c.signals.WithLabelValues(name).Inc()

	c.mu.Lock()
	c.signalCounts[name]++
	c.mu.Unlock()
}

// RecordOutputLine records one captured line.
func (c *Collector) RecordOutputLine(id string, stream output.Stream) {
	c.outputLines.WithLabelValues(string(stream)).Inc()
	if c.perProcessEnabled {
		c.processOutputLines.WithLabelValues(id, string(stream)).Inc()
	}

	c.mu.Lock()
	c.streamLines[string(stream)]++
	c.mu.Unlock()
}

// =============================================================================
// Cleanup Methods
// =============================================================================

// RemoveProcess records a removal and drops per-process metrics for id.
func (c *Collector) RemoveProcess(id string, reason supervisor.RemoveReason) {
	c.removals.WithLabelValues(string(reason)).Inc()

	if !c.perProcessEnabled {
		return
	}
	c.processOutputLines.DeleteLabelValues(id, string(output.StreamStdout))
	c.processOutputLines.DeleteLabelValues(id, string(output.StreamStderr))
}

// Hooks returns registry hooks feeding this collector.
func (c *Collector) Hooks() supervisor.Hooks {
	return supervisor.Hooks{
		OnLaunch:    func(supervisor.Status) { c.ProcessLaunched() },
		OnDuplicate: func(string) { c.DuplicateRejected() },
		OnExit: func(st supervisor.Status, lifetime time.Duration) {
			c.RecordExit(st.Code(), lifetime)
		},
		OnSignal: func(_ string, sig process.Signal) { c.RecordSignal(sig) },
		OnRemove: c.RemoveProcess,
		OnOutputLine: func(id string, stream output.Stream, _ string) {
			c.RecordOutputLine(id, stream)
		},
	}
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating the shutdown summary.
type Summary struct {
	Duration    time.Duration
	Launched    int64
	Duplicates  int64
	PeakTracked int
	ExitCodes   map[int]int64
	Signals     map[string]int64
	OutputLines map[string]int64
	Lifetimes   stats.LifetimeSnapshot
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:    time.Since(c.startTime),
		Launched:    c.totalLaunch,
		Duplicates:  c.totalDupes,
		PeakTracked: c.peakTracked,
		ExitCodes:   make(map[int]int64, len(c.exitCodes)),
		Signals:     make(map[string]int64, len(c.signalCounts)),
		OutputLines: make(map[string]int64, len(c.streamLines)),
		Lifetimes:   c.lifetimes.Snapshot(),
	}

	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}
	for name, count := range c.signalCounts {
		s.Signals[name] = count
	}
	for stream, count := range c.streamLines {
		s.OutputLines[stream] = count
	}

	return s
}

// TotalLaunches returns the number of accepted launches.
func (c *Collector) TotalLaunches() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalLaunch
}

// PerProcessEnabled returns whether per-process metrics are enabled.
func (c *Collector) PerProcessEnabled() bool {
	return c.perProcessEnabled
}
