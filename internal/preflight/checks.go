// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.

// Options describes the environment the supervisor is about to run in.
type Options struct {
	// Shell and ShellArgs are the interpreter every command is run with.
	Shell     string
	ShellArgs []string

	// DefaultCwd is checked when set.
	DefaultCwd string

	// ExpectedProcesses sizes the file descriptor and process limit checks.
	ExpectedProcesses int
}

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkFileDescriptors(opts.ExpectedProcesses))
	add(checkProcessLimit(opts.ExpectedProcesses))
	add(checkShell(opts.Shell, opts.ShellArgs))
	add(checkWorkingDir(opts.DefaultCwd))

	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(processes int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	// Three pipes per child, both ends open while spawning.
	// Plus supervisor overhead (listeners, logging, etc.)
	required := processes*6 + 100
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d processes)", actual, required, processes),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
func checkProcessLimit(processes int) Check {
	// Each command runs under a shell, which may fork further.
	required := processes*2 + 50

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := parseMaxProcesses(string(data))
	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// parseMaxProcesses extracts the soft "Max processes" limit from the
// contents of /proc/self/limits. Returns 0 when absent.
func parseMaxProcesses(limits string) int {
	for _, line := range strings.Split(limits, "\n") {
		if !strings.HasPrefix(line, "Max processes") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return 0
		}
		if fields[2] == "unlimited" {
			return 1000000
		}
		var n int
		fmt.Sscanf(fields[2], "%d", &n)
		return n
	}
	return 0
}

// checkShell verifies the shell exists and runs a trivial command.
func checkShell(shell string, args []string) Check {
	if shell == "" {
		return Check{
			Name:    "shell",
			Passed:  false,
			Message: "no shell configured",
		}
	}

	path, err := exec.LookPath(shell)
	if err != nil {
		return Check{
			Name:    "shell",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", shell, err),
		}
	}

	argv := append(append([]string{}, args...), "exit 0")
	if err := exec.Command(path, argv...).Run(); err != nil {
		return Check{
			Name:    "shell",
			Passed:  false,
			Message: fmt.Sprintf("%s %s failed: %v", path, strings.Join(argv, " "), err),
		}
	}

	return Check{
		Name:    "shell",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", path),
	}
}

// checkWorkingDir verifies the default working directory is usable.
func checkWorkingDir(dir string) Check {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Check{
				Name:    "working_dir",
				Passed:  true,
				Warning: true,
				Message: fmt.Sprintf("unable to determine current directory: %v", err),
			}
		}
		return Check{
			Name:    "working_dir",
			Passed:  true,
			Message: fmt.Sprintf("%s (inherited)", wd),
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return Check{
			Name:    "working_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", dir, err),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:    "working_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	return Check{
		Name:    "working_dir",
		Passed:  true,
		Message: dir,
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case "shell":
		return "set -shell to an installed shell (e.g. /bin/sh)"
	case "working_dir":
		return "create the directory or change -cwd"
	default:
		return "see documentation"
	}
}
