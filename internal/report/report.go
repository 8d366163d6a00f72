// Package report renders operation results as plain-text reports for
// humans: the API's text format and the dashboard's status line.
package report

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/randomizedcoder/go-procsup/internal/stats"
	"github.com/randomizedcoder/go-procsup/internal/supervisor"
)

// Launch reports a launch and the output captured during the grace period.
func Launch(res *supervisor.LaunchResult) string {
	var b strings.Builder

	st := res.Status
	if st.Exited {
		fmt.Fprintf(&b, "Process %s exited during startup (code %d)\n", st.ID, st.Code())
	} else {
		fmt.Fprintf(&b, "Process started: %s (pid %d)\n", st.ID, st.PID)
	}
	fmt.Fprintf(&b, "Command: %s\n", st.Command)
	fmt.Fprintf(&b, "Cwd:     %s\n", st.Cwd)
	fmt.Fprintf(&b, "Status:  %s\n", st.StatusText())

	b.WriteString("\n")
	if len(res.Output) == 0 {
		b.WriteString("No output yet.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Output (last %d lines):\n", len(res.Output))
	writeLines(&b, res.Output)
	return b.String()
}

// List reports every tracked process as a table, in launch order.
func List(list []supervisor.Status) string {
	if len(list) == 0 {
		return "No processes tracked.\n"
	}

	withResources := false
	for _, st := range list {
		if st.Resources != nil {
			withResources = true
			break
		}
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	header := "ID\tPID\tSTATUS\tELAPSED\tLINES"
	if withResources {
		header += "\tRSS\tCPU"
	}
	fmt.Fprintln(tw, header+"\tCOMMAND")

	running := 0
	for _, st := range list {
		if !st.Exited {
			running++
		}
		row := fmt.Sprintf("%s\t%d\t%s\t%s\t%d",
			st.ID, st.PID, st.StatusText(), stats.FormatLifetime(st.Elapsed), st.OutputLines)
		if withResources {
			row += "\t" + resources(st)
		}
		fmt.Fprintln(tw, row+"\t"+st.Command)
	}
	_ = tw.Flush()

	fmt.Fprintf(&b, "\n%d tracked, %d running\n", len(list), running)
	return b.String()
}

func resources(st supervisor.Status) string {
	if st.Resources == nil {
		return "-\t-"
	}
	return fmt.Sprintf("%s\t%.1f%%", stats.FormatBytes(int64(st.Resources.RSSBytes)), st.Resources.CPUPercent)
}

// Status reports a single process.
func Status(st supervisor.Status) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Process %s\n", st.ID)
	fmt.Fprintf(&b, "  PID:     %d\n", st.PID)
	fmt.Fprintf(&b, "  Command: %s\n", st.Command)
	fmt.Fprintf(&b, "  Cwd:     %s\n", st.Cwd)
	fmt.Fprintf(&b, "  Status:  %s\n", st.StatusText())
	if st.Signal != "" {
		fmt.Fprintf(&b, "  Signal:  %s\n", st.Signal)
	}
	fmt.Fprintf(&b, "  Elapsed: %s\n", stats.FormatLifetime(st.Elapsed))
	fmt.Fprintf(&b, "  Lines:   %d\n", st.OutputLines)
	if st.Resources != nil {
		fmt.Fprintf(&b, "  RSS:     %s\n", stats.FormatBytes(int64(st.Resources.RSSBytes)))
		fmt.Fprintf(&b, "  CPU:     %.1f%%\n", st.Resources.CPUPercent)
	}
	return b.String()
}

// Read reports output lines and the status they were read under.
func Read(res *supervisor.ReadResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Process %s: %s\n\n", res.Status.ID, res.Status.StatusText())
	if len(res.Lines) == 0 {
		b.WriteString("No output.\n")
	} else {
		fmt.Fprintf(&b, "Output (%d lines):\n", len(res.Lines))
		writeLines(&b, res.Lines)
	}
	if res.Cleared {
		b.WriteString("\nOutput buffer cleared.\n")
	}
	return b.String()
}

// Write reports bytes sent to a process's stdin.
func Write(res *supervisor.WriteResult) string {
	return fmt.Sprintf("Sent %d bytes to %s.\n", res.Bytes, res.ID)
}

// InputClosed reports that stdin of id was closed.
func InputClosed(id string) string {
	return fmt.Sprintf("Closed stdin of %s.\n", id)
}

// Kill reports the outcome of a kill request.
func Kill(res *supervisor.KillResult) string {
	var b strings.Builder
	id := res.Status.ID

	switch {
	case res.AlreadyExited && res.Removed:
		fmt.Fprintf(&b, "Process %s had already exited (code %d) and was removed.\n", id, res.Status.Code())
		return b.String()
	case res.AlreadyExited:
		fmt.Fprintf(&b, "Process %s already exited (code %d). Pass remove to stop tracking it.\n", id, res.Status.Code())
		return b.String()
	case res.SignalError != "":
		fmt.Fprintf(&b, "Failed to send %s to %s: %s\n", res.Signal, id, res.SignalError)
	default:
		fmt.Fprintf(&b, "Sent %s to %s.\n", res.Signal, id)
	}

	fmt.Fprintf(&b, "Status: %s\n", res.Status.StatusText())
	if res.Removed {
		fmt.Fprintf(&b, "Removed %s from tracking.\n", id)
	}
	return b.String()
}

// Cleanup reports which processes were signaled and which were removed.
func Cleanup(res *supervisor.CleanupResult) string {
	if len(res.Killed) == 0 && len(res.Removed) == 0 {
		return "Nothing to clean up.\n"
	}

	var b strings.Builder
	if len(res.Removed) > 0 {
		fmt.Fprintf(&b, "Removed %d exited: %s\n", len(res.Removed), strings.Join(res.Removed, ", "))
	}
	if len(res.Killed) > 0 {
		fmt.Fprintf(&b, "Terminated %d running: %s\n", len(res.Killed), strings.Join(res.Killed, ", "))
	}
	return b.String()
}

// Error reports a failed operation. A missing id lists what is tracked.
func Error(err error) string {
	var nf *supervisor.NotFoundError
	if errors.As(err, &nf) {
		if len(nf.Tracked) == 0 {
			return fmt.Sprintf("Process %s not found. No processes are tracked.\n", nf.ID)
		}
		return fmt.Sprintf("Process %s not found. Tracked: %s\n", nf.ID, strings.Join(nf.Tracked, ", "))
	}
	return fmt.Sprintf("Error: %v\n", err)
}

func writeLines(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
}
