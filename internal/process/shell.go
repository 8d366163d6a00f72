package process

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// ShellConfig holds configuration for running commands through a shell.
type ShellConfig struct {
	// Path is the shell binary.
	Path string

	// Args are placed between the shell and the command string, e.g. ["-c"].
	Args []string

	// Env is appended to the supervisor's own environment.
	Env []string
}

// DefaultShellConfig returns a ShellConfig running commands via /bin/sh -c.
func DefaultShellConfig() *ShellConfig {
	return &ShellConfig{
		Path: "/bin/sh",
		Args: []string{"-c"},
	}
}

// ShellRunner implements Runner by handing the command string to a shell.
// The command is opaque: no parsing or quoting is attempted.
type ShellRunner struct {
	config *ShellConfig
}

// NewShellRunner creates a runner. A nil config selects DefaultShellConfig.
func NewShellRunner(cfg *ShellConfig) *ShellRunner {
	if cfg == nil {
		cfg = DefaultShellConfig()
	}
	return &ShellRunner{config: cfg}
}

// Name returns the shell's base name.
func (r *ShellRunner) Name() string {
	return filepath.Base(r.config.Path)
}

// BuildCommand creates an exec.Cmd that runs command through the shell in cwd.
//
// The child is placed in its own process group so signals reach anything the
// shell spawned. The command is not tied to a context: only an explicit
// signal stops it.
func (r *ShellRunner) BuildCommand(command, cwd string) (*exec.Cmd, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(r.config.Path, r.buildArgs(command)...)
	cmd.Dir = cwd
	if len(r.config.Env) > 0 {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}

	// Set process group for clean shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	return cmd, nil
}

// buildArgs returns the shell arguments for command.
func (r *ShellRunner) buildArgs(command string) []string {
	args := make([]string, 0, len(r.config.Args)+1)
	args = append(args, r.config.Args...)
	return append(args, command)
}

// CommandString returns the full invocation for display.
func (r *ShellRunner) CommandString(command string) string {
	parts := append([]string{r.config.Path}, r.config.Args...)
	return strings.Join(parts, " ") + " " + shellQuote(command)
}

// shellQuote quotes s for display with single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Ensure ShellRunner implements Runner interface
var _ Runner = (*ShellRunner)(nil)
