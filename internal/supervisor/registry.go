package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/randomizedcoder/go-procsup/internal/output"
	"github.com/randomizedcoder/go-procsup/internal/process"
)

const (
	// DefaultGracePeriod is how long Launch waits for early output.
	DefaultGracePeriod = 500 * time.Millisecond

	// DefaultSignalSettle is how long Kill waits after signaling.
	DefaultSignalSettle = 500 * time.Millisecond

	// DefaultDrainTimeout bounds the wait for output captures after exit.
	DefaultDrainTimeout = 2 * time.Second

	// DefaultWriteTimeout bounds a single stdin write.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultReadLines is used by Read when no line count is given.
	DefaultReadLines = 50

	// DefaultPreviewLines is the number of lines returned by Launch.
	DefaultPreviewLines = 10

	// sampleTimeout bounds one resource sample in List.
	sampleTimeout = 250 * time.Millisecond
)

// Config configures a Registry. Zero values select the defaults.
type Config struct {
	Runner process.Runner
	Logger *slog.Logger

	// DefaultCwd is used when a launch does not name a working directory.
	// Empty means the supervisor's own working directory.
	DefaultCwd string

	// DefaultMaxOutputLines is the buffer capacity for launches that do
	// not choose one.
	DefaultMaxOutputLines int

	GracePeriod  time.Duration
	SignalSettle time.Duration
	DrainTimeout time.Duration
	WriteTimeout time.Duration
	PreviewLines int

	// SampleResources adds RSS and CPU figures to List results.
	SampleResources bool

	Hooks Hooks
}

// LaunchRequest describes a process to start.
type LaunchRequest struct {
	Command        string `json:"command" yaml:"command"`
	Cwd            string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	ID             string `json:"id,omitempty" yaml:"id,omitempty"`
	MaxOutputLines int    `json:"max_output_lines,omitempty" yaml:"max_output_lines,omitempty"`
}

// LaunchResult is returned by Launch.
type LaunchResult struct {
	Status Status   `json:"status"`
	Output []string `json:"output"`
}

// ReadResult is returned by Read.
type ReadResult struct {
	Status  Status   `json:"status"`
	Lines   []string `json:"lines"`
	Cleared bool     `json:"cleared"`
}

// WriteResult is returned by Write.
type WriteResult struct {
	ID    string `json:"id"`
	Bytes int    `json:"bytes"`
}

// KillResult is returned by Kill.
type KillResult struct {
	Status        Status         `json:"status"`
	Signal        process.Signal `json:"signal,omitempty"`
	AlreadyExited bool           `json:"already_exited"`
	Removed       bool           `json:"removed"`
	SignalError   string         `json:"signal_error,omitempty"`
}

// CleanupResult is returned by Cleanup. Killed and Removed are disjoint:
// Killed holds processes that were signaled and dropped, Removed holds
// processes that had already exited.
type CleanupResult struct {
	Killed  []string `json:"killed"`
	Removed []string `json:"removed"`
}

// Registry tracks launched processes by id.
//
// All operations are safe for concurrent use. The table lock is never held
// while waiting on a process or writing to one.
type Registry struct {
	runner process.Runner
	logger *slog.Logger
	hooks  Hooks
	cfg    Config
	ids    *process.IDAllocator

	mu       sync.RWMutex
	records  map[string]*Record
	order    []string
	reserved map[string]struct{}

	trackers sync.WaitGroup
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.Runner == nil {
		cfg.Runner = process.NewShellRunner(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultMaxOutputLines <= 0 {
		cfg.DefaultMaxOutputLines = output.DefaultCapacity
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.SignalSettle <= 0 {
		cfg.SignalSettle = DefaultSignalSettle
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.PreviewLines <= 0 {
		cfg.PreviewLines = DefaultPreviewLines
	}

	return &Registry{
		runner:   cfg.Runner,
		logger:   cfg.Logger,
		hooks:    cfg.Hooks,
		cfg:      cfg,
		ids:      process.NewIDAllocator(),
		records:  make(map[string]*Record),
		reserved: make(map[string]struct{}),
	}
}

// ============================================================================
// Launch
// ============================================================================

// Launch starts req.Command through the shell and registers it.
//
// It waits up to the grace period (less if the process exits first) and
// returns the process status with the last few output lines. A process that
// fails to spawn is still registered, as exited with code 1 and an [error]
// line in its output.
func (r *Registry) Launch(req LaunchRequest) (*LaunchResult, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, ErrEmptyCommand
	}

	id := req.ID
	if id == "" {
		id = r.ids.Next(req.Command)
	}
	if err := r.reserve(id); err != nil {
		r.logger.Warn("launch_rejected", "id", id, "reason", "duplicate_id")
		if r.hooks.OnDuplicate != nil {
			r.hooks.OnDuplicate(id)
		}
		return nil, err
	}

	cwd := req.Cwd
	if cwd == "" {
		cwd = r.cfg.DefaultCwd
	}
	maxLines := req.MaxOutputLines
	if maxLines <= 0 {
		maxLines = r.cfg.DefaultMaxOutputLines
	}

	rec := newRecord(id, req.Command, cwd, output.NewBuffer(maxLines))
	spawnErr := r.spawn(rec)
	r.register(rec)

	st := rec.Status()
	if r.hooks.OnLaunch != nil {
		r.hooks.OnLaunch(st)
	}
	if spawnErr != nil {
		r.logger.Error("process_spawn_failed",
			"id", id,
			"command", req.Command,
			"cwd", cwd,
			"error", spawnErr,
		)
		r.exited(rec)
	} else {
		r.logger.Info("process_started",
			"id", id,
			"pid", st.PID,
			"command", req.Command,
			"cwd", cwd,
			"max_output_lines", maxLines,
		)
	}

	r.awaitGrace(rec)

	return &LaunchResult{
		Status: rec.Status(),
		Output: rec.output.Snapshot(r.cfg.PreviewLines),
	}, nil
}

// spawn starts the process and its output captures. On failure the record
// is finished with code 1 and the error is recorded in its output.
func (r *Registry) spawn(rec *Record) error {
	cmd, err := r.runner.BuildCommand(rec.command, rec.cwd)
	if err != nil {
		return r.failSpawn(rec, err)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return r.failSpawn(rec, fmt.Errorf("failed to create stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return r.failSpawn(rec, fmt.Errorf("failed to create stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return r.failSpawn(rec, fmt.Errorf("failed to create stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return r.failSpawn(rec, err)
	}
	rec.attach(cmd, stdin)

	onLine := func(stream output.Stream, line string) {
		if r.hooks.OnOutputLine != nil {
			r.hooks.OnOutputLine(rec.id, stream, line)
		}
	}
	rec.captures = []*output.Capture{
		output.NewCapture(stdout, rec.output, output.CaptureConfig{
			Stream: output.StreamStdout,
			OnLine: onLine,
		}),
		output.NewCapture(stderr, rec.output, output.CaptureConfig{
			Stream: output.StreamStderr,
			Tag:    output.StderrTag,
			OnLine: onLine,
		}),
	}
	rec.pipes = []io.Closer{stdout, stderr}
	for _, c := range rec.captures {
		go c.Run()
	}

	r.trackers.Add(1)
	go r.track(rec)
	return nil
}

func (r *Registry) failSpawn(rec *Record, err error) error {
	rec.output.Append(errorMarkerPrefix + err.Error())
	rec.finish(1, time.Now())
	return err
}

// track waits for the process to exit, drains its output and records the
// exit. It runs once per spawned process.
func (r *Registry) track(rec *Record) {
	defer r.trackers.Done()

	// Process.Wait rather than Cmd.Wait: Cmd.Wait closes the pipes before
	// the captures have read everything.
	state, err := rec.cmd.Process.Wait()
	rec.markReaped()
	code := process.ExitCode(state, err)

	r.drain(rec)
	if rec.finish(code, time.Now()) {
		r.exited(rec)
	}
}

// drain waits for both captures to reach EOF. If a descendant keeps a pipe
// open past the drain timeout, the read ends are closed.
func (r *Registry) drain(rec *Record) {
	timer := time.NewTimer(r.cfg.DrainTimeout)
	defer timer.Stop()

	for _, c := range rec.captures {
		select {
		case <-c.Done():
		case <-timer.C:
			r.logger.Warn("output_drain_timeout",
				"id", rec.id,
				"timeout", r.cfg.DrainTimeout,
				"stream", c.Stream(),
			)
			rec.closePipes()
			<-c.Done()
		}
	}
	rec.closePipes()
}

// exited logs the exit and fires OnExit.
func (r *Registry) exited(rec *Record) {
	st := rec.Status()
	r.logger.Info("process_exited",
		"id", st.ID,
		"pid", st.PID,
		"exit_code", st.Code(),
		"uptime", st.Elapsed,
	)
	if r.hooks.OnExit != nil {
		r.hooks.OnExit(st, st.Elapsed)
	}
}

// awaitGrace waits for the grace period or the process's exit.
func (r *Registry) awaitGrace(rec *Record) {
	timer := time.NewTimer(r.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case <-rec.Done():
	case <-timer.C:
	}
}

// ============================================================================
// Queries
// ============================================================================

// List returns the status of every tracked process in launch order.
func (r *Registry) List() []Status {
	recs := r.snapshot()
	statuses := make([]Status, 0, len(recs))
	for _, rec := range recs {
		st := rec.Status()
		if r.cfg.SampleResources && !st.Exited && st.PID > 0 {
			st.Resources = r.sample(st.PID)
		}
		statuses = append(statuses, st)
	}
	return statuses
}

func (r *Registry) sample(pid int) *process.Resources {
	ctx, cancel := context.WithTimeout(context.Background(), sampleTimeout)
	defer cancel()

	res, err := process.Sample(ctx, pid)
	if err != nil {
		r.logger.Debug("resource_sample_failed", "pid", pid, "error", err)
		return nil
	}
	return res
}

// Get returns the status of one process.
func (r *Registry) Get(id string) (Status, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return Status{}, err
	}
	return rec.Status(), nil
}

// IDs returns the tracked ids in launch order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of tracked processes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Read returns the last lines of a process's output. lines <= 0 selects
// DefaultReadLines. With clear, the buffer is emptied after the snapshot is
// taken, so every returned line has been seen once.
func (r *Registry) Read(id string, lines int, clear bool) (*ReadResult, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if lines <= 0 {
		lines = DefaultReadLines
	}

	var snap []string
	if clear {
		snap = rec.output.SnapshotAndClear(lines)
	} else {
		snap = rec.output.Snapshot(lines)
	}

	return &ReadResult{
		Status:  rec.Status(),
		Lines:   snap,
		Cleared: clear,
	}, nil
}

// ============================================================================
// Input
// ============================================================================

// Write sends input to a process's stdin, followed by a newline when
// newline is set.
func (r *Registry) Write(id, input string, newline bool) (*WriteResult, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	stdin, err := rec.inputPipe()
	if err != nil {
		return nil, err
	}

	data := input
	if newline {
		data += "\n"
	}

	rec.writeMu.Lock()
	defer rec.writeMu.Unlock()

	if d, ok := stdin.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = d.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
	}
	n, err := io.WriteString(stdin, data)
	if err != nil {
		if rec.exited() {
			return nil, ErrAlreadyExited
		}
		return nil, fmt.Errorf("%w: %v", ErrStdinUnavailable, err)
	}

	r.logger.Debug("process_input_written", "id", id, "bytes", n)
	return &WriteResult{ID: id, Bytes: n}, nil
}

// CloseInput closes a process's stdin so it reads EOF.
func (r *Registry) CloseInput(id string) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := rec.closeInput(); err != nil {
		if errors.Is(err, ErrAlreadyExited) || errors.Is(err, ErrStdinUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStdinUnavailable, err)
	}
	r.logger.Debug("process_input_closed", "id", id)
	return nil
}

// ============================================================================
// Termination
// ============================================================================

// Kill sends sig (terminate when empty) to a live process and waits up to
// the settle period for it to exit. With remove, the record is dropped
// afterwards whether or not the exit was observed.
//
// Killing an exited process is not an error: the result reports
// AlreadyExited and, with remove, the record is still dropped.
func (r *Registry) Kill(id string, sig process.Signal, remove bool) (*KillResult, error) {
	if sig == "" {
		sig = process.SignalTerminate
	}
	rec, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	if rec.exited() {
		res := &KillResult{Status: rec.Status(), AlreadyExited: true}
		if remove {
			res.Removed = r.removeRecord(rec, RemoveReasonKill)
		}
		return res, nil
	}

	res := &KillResult{Signal: sig}
	if err := r.signal(rec, sig); err != nil {
		res.SignalError = err.Error()
	}
	r.settle(rec)

	res.Status = rec.Status()
	if remove {
		res.Removed = r.removeRecord(rec, RemoveReasonKill)
	}
	return res, nil
}

// signal delivers sig to the record's process group.
func (r *Registry) signal(rec *Record, sig process.Signal) error {
	pid, reaped := rec.target()

	var err error
	if reaped {
		// The shell is gone but descendants may still hold its pipes.
		err = process.SendGroup(pid, sig)
	} else {
		err = process.Send(pid, sig)
	}
	if err != nil {
		r.logger.Warn("signal_failed",
			"id", rec.id,
			"pid", pid,
			"reaped", reaped,
			"signal", sig.String(),
			"error", err,
		)
		return err
	}

	rec.markSignaled(sig)
	r.logger.Info("process_signaled", "id", rec.id, "pid", pid, "signal", sig.String())
	if r.hooks.OnSignal != nil {
		r.hooks.OnSignal(rec.id, sig)
	}
	return nil
}

func (r *Registry) settle(rec *Record) {
	timer := time.NewTimer(r.cfg.SignalSettle)
	defer timer.Stop()

	select {
	case <-rec.Done():
	case <-timer.C:
	}
}

// Cleanup drops every exited process. With killAll, live processes are
// sent SIGTERM and dropped too, without waiting for them to exit; their
// exit is still reaped in the background.
func (r *Registry) Cleanup(killAll bool) *CleanupResult {
	return r.cleanup(killAll, RemoveReasonCleanup)
}

func (r *Registry) cleanup(killAll bool, reason RemoveReason) *CleanupResult {
	res := &CleanupResult{Killed: []string{}, Removed: []string{}}

	for _, rec := range r.snapshot() {
		switch {
		case rec.exited():
			if r.removeRecord(rec, reason) {
				res.Removed = append(res.Removed, rec.id)
			}
		case killAll:
			_ = r.signal(rec, process.SignalTerminate)
			if r.removeRecord(rec, reason) {
				res.Killed = append(res.Killed, rec.id)
			}
		}
	}

	r.logger.Info("cleanup_complete",
		"kill_all", killAll,
		"killed", len(res.Killed),
		"removed", len(res.Removed),
		"remaining", r.Len(),
	)
	return res
}

// Shutdown terminates and drops every tracked process, then waits for the
// terminated ones to exit. When ctx expires first, the survivors are sent
// SIGKILL and ctx's error is returned.
func (r *Registry) Shutdown(ctx context.Context) error {
	var alive []*Record
	for _, rec := range r.snapshot() {
		if !rec.exited() {
			alive = append(alive, rec)
		}
	}

	r.cleanup(true, RemoveReasonShutdown)

	for _, rec := range alive {
		select {
		case <-rec.Done():
		case <-ctx.Done():
			r.forceKill(alive)
			return ctx.Err()
		}
	}
	return nil
}

func (r *Registry) forceKill(recs []*Record) {
	for _, rec := range recs {
		select {
		case <-rec.Done():
			continue
		default:
		}
		r.logger.Warn("force_killing_process", "id", rec.id, "pid", rec.Status().PID)
		_ = r.signal(rec, process.SignalKill)
	}
}

// Wait blocks until every exit tracker has finished.
func (r *Registry) Wait() {
	r.trackers.Wait()
}

// ============================================================================
// Table
// ============================================================================

// reserve claims id for a launch in progress.
func (r *Registry) reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; ok {
		return &DuplicateIDError{ID: id}
	}
	if _, ok := r.reserved[id]; ok {
		return &DuplicateIDError{ID: id}
	}
	r.reserved[id] = struct{}{}
	return nil
}

// register inserts a fully initialized record and releases its reservation.
func (r *Registry) register(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.reserved, rec.id)
	r.records[rec.id] = rec
	r.order = append(r.order, rec.id)
}

func (r *Registry) lookup(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, &NotFoundError{ID: id, Tracked: append([]string{}, r.order...)}
	}
	return rec, nil
}

// snapshot returns the tracked records in launch order.
func (r *Registry) snapshot() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]*Record, 0, len(r.order))
	for _, id := range r.order {
		recs = append(recs, r.records[id])
	}
	return recs
}

// removeRecord drops rec if it is still the record registered under its id.
func (r *Registry) removeRecord(rec *Record, reason RemoveReason) bool {
	r.mu.Lock()
	if r.records[rec.id] != rec {
		r.mu.Unlock()
		return false
	}
	delete(r.records, rec.id)
	for i, id := range r.order {
		if id == rec.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.logger.Debug("process_removed", "id", rec.id, "reason", reason)
	if r.hooks.OnRemove != nil {
		r.hooks.OnRemove(rec.id, reason)
	}
	return true
}
