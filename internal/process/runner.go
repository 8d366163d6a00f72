// Package process provides the native-process side of the supervisor:
// building shell commands, delivering signals, extracting exit codes,
// allocating ids and sampling resource usage.
package process

import (
	"os/exec"
)

// Runner creates executable commands for launches.
// This interface allows the supervisor to be shell-agnostic.
type Runner interface {
	// BuildCommand returns a ready-to-start command that runs command in cwd.
	// The command should NOT be started yet.
	BuildCommand(command, cwd string) (*exec.Cmd, error)

	// Name returns a human-readable name for this runner.
	Name() string
}
