package logging

import (
	"context"
	"log/slog"
	"strings"
)

// MaxLineLength is the longest child output line mirrored into the log.
const MaxLineLength = 4096

// OutputMirror copies captured child output lines into the supervisor log.
// Lines are logged at debug level unless they look like errors, in which
// case they are raised to warn so they show up without -v.
type OutputMirror struct {
	logger  *slog.Logger
	verbose bool
}

// NewOutputMirror creates a mirror. With verbose=false only warn-level lines
// are written.
func NewOutputMirror(logger *slog.Logger, verbose bool) *OutputMirror {
	return &OutputMirror{logger: logger, verbose: verbose}
}

// HandleLine logs one line of output from the process with the given id.
func (m *OutputMirror) HandleLine(id, stream, line string) {
	if m == nil || m.logger == nil {
		return
	}

	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	level := classifyLine(stream, line)
	if !m.verbose && level == slog.LevelDebug {
		return
	}

	m.logger.Log(context.Background(), level, "process_output",
		"id", id,
		"stream", stream,
		"line", line,
	)
}

// classifyLine determines the log level for a line based on content.
func classifyLine(stream, line string) slog.Level {
	if stream != "stderr" {
		return slog.LevelDebug
	}

	lower := strings.ToLower(line)
	if strings.Contains(lower, "panic") ||
		strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "error") ||
		strings.Contains(lower, "command not found") ||
		strings.Contains(lower, "permission denied") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}
