package supervisor

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/randomizedcoder/go-procsup/internal/output"
	"github.com/randomizedcoder/go-procsup/internal/process"
)

// exitMarkerFormat is appended to a process's output exactly once, when its
// exit is observed.
const exitMarkerFormat = "[exit] Process exited with code %d"

// errorMarkerPrefix tags a spawn failure in the output history.
const errorMarkerPrefix = "[error] "

// Record is one tracked child process.
//
// Identity fields and the pipes are fixed before the record is registered.
// Everything the exit tracker and the operations both touch lives under mu.
type Record struct {
	id        string
	command   string
	cwd       string
	startedAt time.Time
	output    *output.Buffer

	// Set while spawning, read-only afterwards.
	cmd       *exec.Cmd
	pid       int
	captures  []*output.Capture
	pipes     []io.Closer
	pipesOnce sync.Once

	mu         sync.Mutex
	state      State
	stdin      io.WriteCloser
	exitCode   int
	exitedAt   time.Time
	lastSignal process.Signal

	// reaped is set once Process.Wait has returned. The pid may be reused
	// from then on; only the process group is still a valid target.
	reaped bool

	// Serializes writers so concurrent Write calls do not interleave.
	writeMu sync.Mutex

	done       chan struct{}
	finishOnce sync.Once
}

func newRecord(id, command, cwd string, buf *output.Buffer) *Record {
	return &Record{
		id:        id,
		command:   command,
		cwd:       cwd,
		startedAt: time.Now(),
		output:    buf,
		state:     StateLaunching,
		done:      make(chan struct{}),
	}
}

// ID returns the record's id.
func (r *Record) ID() string {
	return r.id
}

// Done is closed once the exit has been recorded.
func (r *Record) Done() <-chan struct{} {
	return r.done
}

// Output returns the record's line history.
func (r *Record) Output() *output.Buffer {
	return r.output
}

// attach marks a started process as running.
func (r *Record) attach(cmd *exec.Cmd, stdin io.WriteCloser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cmd = cmd
	r.pid = cmd.Process.Pid
	r.stdin = stdin
	r.state = StateRunning
}

// exited reports whether the exit has been recorded.
func (r *Record) exited() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateExited
}

// markReaped records that the process itself has been waited for.
func (r *Record) markReaped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reaped = true
}

// target returns the pid to signal and whether it has been reaped.
func (r *Record) target() (pid int, reaped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pid, r.reaped
}

// markSignaled records that sig was sent. It is a no-op once exited.
func (r *Record) markSignaled(sig process.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateExited {
		return
	}
	r.state = StateSignaled
	r.lastSignal = sig
}

// finish records the exit, appends the exit marker and closes stdin.
// Only the first call has any effect; it reports whether it was that call.
func (r *Record) finish(code int, at time.Time) bool {
	first := false
	r.finishOnce.Do(func() {
		first = true

		r.mu.Lock()
		r.state = StateExited
		r.exitCode = code
		r.exitedAt = at
		stdin := r.stdin
		r.stdin = nil
		r.output.Append(fmt.Sprintf(exitMarkerFormat, code))
		r.mu.Unlock()

		if stdin != nil {
			_ = stdin.Close()
		}
		close(r.done)
	})
	return first
}

// inputPipe returns the stdin writer of a live process.
func (r *Record) inputPipe() (io.WriteCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateExited {
		return nil, ErrAlreadyExited
	}
	if r.stdin == nil {
		return nil, ErrStdinUnavailable
	}
	return r.stdin, nil
}

// closeInput closes stdin so the child sees EOF.
func (r *Record) closeInput() error {
	r.mu.Lock()
	if r.state == StateExited {
		r.mu.Unlock()
		return ErrAlreadyExited
	}
	stdin := r.stdin
	r.stdin = nil
	r.mu.Unlock()

	if stdin == nil {
		return ErrStdinUnavailable
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return stdin.Close()
}

// closePipes closes the read ends of the output pipes, unblocking captures
// whose pipe is held open by a surviving descendant.
func (r *Record) closePipes() {
	r.pipesOnce.Do(func() {
		for _, p := range r.pipes {
			_ = p.Close()
		}
	})
}

// Status returns a consistent snapshot of the record.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		ID:          r.id,
		PID:         r.pid,
		Command:     r.command,
		Cwd:         r.cwd,
		State:       r.state,
		Exited:      r.state == StateExited,
		StartedAt:   r.startedAt,
		OutputLines: r.output.Len(),
	}
	if r.lastSignal != "" {
		st.Signal = r.lastSignal.String()
	}

	end := time.Now()
	if st.Exited {
		code := r.exitCode
		exitedAt := r.exitedAt
		st.ExitCode = &code
		st.ExitedAt = &exitedAt
		end = exitedAt
	}
	st.Elapsed = end.Sub(r.startedAt)
	st.ElapsedSeconds = st.Elapsed.Seconds()
	return st
}

// Status is a point-in-time view of a tracked process.
type Status struct {
	ID             string             `json:"id"`
	PID            int                `json:"pid"`
	Command        string             `json:"command"`
	Cwd            string             `json:"cwd"`
	State          State              `json:"state"`
	Exited         bool               `json:"exited"`
	ExitCode       *int               `json:"exit_code,omitempty"`
	Signal         string             `json:"signal,omitempty"`
	StartedAt      time.Time          `json:"started_at"`
	ExitedAt       *time.Time         `json:"exited_at,omitempty"`
	Elapsed        time.Duration      `json:"-"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	OutputLines    int                `json:"output_lines"`
	Resources      *process.Resources `json:"resources,omitempty"`
}

// StatusText returns "running" or "exited (code N)".
func (s Status) StatusText() string {
	if s.Exited && s.ExitCode != nil {
		return fmt.Sprintf("exited (code %d)", *s.ExitCode)
	}
	return "running"
}

// Code returns the exit code, or -1 while the process is alive.
func (s Status) Code() int {
	if s.ExitCode == nil {
		return -1
	}
	return *s.ExitCode
}
