package process

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Signal is one of the logical stop signals a caller may request.
type Signal string

const (
	// SignalTerminate asks the process to exit gracefully (SIGTERM).
	SignalTerminate Signal = "terminate"

	// SignalKill forces the process to exit (SIGKILL).
	SignalKill Signal = "kill"

	// SignalInterrupt interrupts the process as Ctrl+C would (SIGINT).
	SignalInterrupt Signal = "interrupt"
)

// ErrUnknownSignal is returned by ParseSignal for unrecognised names.
var ErrUnknownSignal = errors.New("unknown signal")

// ParseSignal accepts logical names and common OS spellings.
// An empty string selects SignalTerminate.
func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "terminate", "term", "sigterm", "15":
		return SignalTerminate, nil
	case "kill", "sigkill", "9", "force-kill", "force":
		return SignalKill, nil
	case "interrupt", "int", "sigint", "2":
		return SignalInterrupt, nil
	default:
		return "", fmt.Errorf("%w: %q (want terminate, kill or interrupt)", ErrUnknownSignal, s)
	}
}

// OS returns the operating system signal.
func (s Signal) OS() syscall.Signal {
	switch s {
	case SignalKill:
		return syscall.SIGKILL
	case SignalInterrupt:
		return syscall.SIGINT
	default:
		return syscall.SIGTERM
	}
}

// String returns the OS signal name, e.g. "SIGTERM".
func (s Signal) String() string {
	switch s {
	case SignalKill:
		return "SIGKILL"
	case SignalInterrupt:
		return "SIGINT"
	default:
		return "SIGTERM"
	}
}

// Send delivers sig to the process group led by pid, falling back to the
// single process when no such group exists. Only use it while pid has not
// been reaped; afterwards the pid may belong to another process.
func Send(pid int, sig Signal) error {
	err := SendGroup(pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return syscall.Kill(pid, sig.OS())
	}
	return err
}

// SendGroup delivers sig to the process group led by pid only. The group
// outlives its leader while any member is alive, so this still reaches
// children left behind by a reaped shell.
func SendGroup(pid int, sig Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	return syscall.Kill(-pid, sig.OS())
}
