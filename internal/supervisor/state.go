// Package supervisor tracks externally spawned child processes: it launches
// them through a shell, captures their output into bounded per-process
// buffers, forwards input, delivers stop signals and reports status.
package supervisor

import "fmt"

// State represents the lifecycle state of a tracked process.
//
//	Launching → Running → Exited
//	              ↓          ↑
//	           Signaled ─────┘
//
// Signaled records that a stop signal was sent; the process only becomes
// Exited once the OS confirms termination.
type State int

const (
	// StateLaunching is the state while the process is being spawned.
	StateLaunching State = iota

	// StateRunning indicates the process is alive.
	StateRunning

	// StateSignaled indicates a signal was sent but exit is not yet observed.
	StateSignaled

	// StateExited is terminal: the OS reported termination.
	StateExited
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateSignaled:
		return "signaled"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "launching":
		*s = StateLaunching
	case "running":
		*s = StateRunning
	case "signaled":
		*s = StateSignaled
	case "exited":
		*s = StateExited
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// IsAlive returns true if the process has not been confirmed exited.
func (s State) IsAlive() bool {
	return s == StateLaunching || s == StateRunning || s == StateSignaled
}

// IsTerminal returns true if the state is a terminal state (exited).
func (s State) IsTerminal() bool {
	return s == StateExited
}
