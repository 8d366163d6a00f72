package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// ExitCode extracts the exit code from the result of os.Process.Wait.
//
// Signaled processes report 128 + signal number, matching shell convention.
// A wait error without a state is reported as 1.
func ExitCode(state *os.ProcessState, err error) int {
	if state == nil {
		if err != nil {
			return ExitCodeFromError(err)
		}
		return 1
	}

	if status, ok := state.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			// Signal exit: 128 + signal number
			return 128 + int(status.Signal())
		}
		return status.ExitStatus()
	}
	return state.ExitCode()
}

// ExitCodeFromError extracts the exit code from an exec.Cmd Wait() or Run()
// error.
func ExitCodeFromError(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitCode(exitErr.ProcessState, nil)
	}

	// Unknown error, assume exit code 1
	return 1
}
