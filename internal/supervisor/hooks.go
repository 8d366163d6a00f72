package supervisor

import (
	"time"

	"github.com/randomizedcoder/go-procsup/internal/output"
	"github.com/randomizedcoder/go-procsup/internal/process"
)

// RemoveReason records why a process left the registry.
type RemoveReason string

const (
	RemoveReasonKill     RemoveReason = "kill"
	RemoveReasonCleanup  RemoveReason = "cleanup"
	RemoveReasonShutdown RemoveReason = "shutdown"
)

// Hooks contains optional callbacks for registry events. Hooks run on the
// goroutine that produced the event and must not block.
type Hooks struct {
	// OnLaunch is called after a process is registered.
	OnLaunch func(st Status)

	// OnDuplicate is called when a launch is rejected for a duplicate id.
	OnDuplicate func(id string)

	// OnExit is called once per process when its exit is recorded.
	OnExit func(st Status, lifetime time.Duration)

	// OnSignal is called after a signal is delivered.
	OnSignal func(id string, sig process.Signal)

	// OnRemove is called when a record is dropped from the registry.
	OnRemove func(id string, reason RemoveReason)

	// OnOutputLine is called for every captured output line.
	OnOutputLine func(id string, stream output.Stream, line string)
}

// ChainHooks returns Hooks that call each non-nil hook of hs in order.
func ChainHooks(hs ...Hooks) Hooks {
	var out Hooks
	for _, h := range hs {
		h := h
		if h.OnLaunch != nil {
			prev := out.OnLaunch
			out.OnLaunch = func(st Status) {
				if prev != nil {
					prev(st)
				}
				h.OnLaunch(st)
			}
		}
		if h.OnDuplicate != nil {
			prev := out.OnDuplicate
			out.OnDuplicate = func(id string) {
				if prev != nil {
					prev(id)
				}
				h.OnDuplicate(id)
			}
		}
		if h.OnExit != nil {
			prev := out.OnExit
			out.OnExit = func(st Status, lifetime time.Duration) {
				if prev != nil {
					prev(st, lifetime)
				}
				h.OnExit(st, lifetime)
			}
		}
		if h.OnSignal != nil {
			prev := out.OnSignal
			out.OnSignal = func(id string, sig process.Signal) {
				if prev != nil {
					prev(id, sig)
				}
				h.OnSignal(id, sig)
			}
		}
		if h.OnRemove != nil {
			prev := out.OnRemove
			out.OnRemove = func(id string, reason RemoveReason) {
				if prev != nil {
					prev(id, reason)
				}
				h.OnRemove(id, reason)
			}
		}
		if h.OnOutputLine != nil {
			prev := out.OnOutputLine
			out.OnOutputLine = func(id string, stream output.Stream, line string) {
				if prev != nil {
					prev(id, stream, line)
				}
				h.OnOutputLine(id, stream, line)
			}
		}
	}
	return out
}
