package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-procsup/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderDashboard renders the header, process table, output panel and footer.
func (m Model) renderDashboard() string {
	sections := []string{
		m.renderHeader(),
		m.renderTable(),
		m.renderOutput(),
	}
	if m.message != "" {
		sections = append(sections, m.renderMessage())
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	tracked, running := m.Counts()

	header := fmt.Sprintf(
		" go-procsup │ Processes: %d running / %d tracked │ Elapsed: %s ",
		running,
		tracked,
		stats.FormatDuration(m.Elapsed()),
	)
	if m.pending > 0 {
		header += "│ working… "
	}

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Process Table
// =============================================================================

func (m Model) renderTable() string {
	if len(m.statuses) == 0 {
		empty := mutedStyle.Render("No processes tracked.")
		if m.listenAddr != "" {
			empty += "\n" + dimStyle.Render(fmt.Sprintf("POST to %s/v1/processes to launch one.", m.listenAddr))
		}
		return boxStyle.Width(m.width - 2).Render(empty)
	}
	return boxStyle.Width(m.width - 2).Render(m.table.View())
}

// =============================================================================
// Output Panel
// =============================================================================

func (m Model) renderOutput() string {
	st, ok := m.Selected()
	if !ok {
		return ""
	}

	lines := []string{
		sectionHeaderStyle.Render("Output: "+st.ID) + "  " + GetStatusLabel(st),
		RenderKeyValue("Command", st.Command),
		RenderKeyValue("Cwd", st.Cwd),
	}
	if st.Resources != nil {
		lines = append(lines, RenderKeyValue("RSS", stats.FormatBytes(int64(st.Resources.RSSBytes))))
	}
	lines = append(lines, "")

	if len(m.output) == 0 {
		lines = append(lines, dimStyle.Render("(no output)"))
	}
	maxWidth := m.width - 6
	for _, line := range m.output {
		lines = append(lines, GetLineStyle(line).Render(truncate(line, maxWidth)))
	}

	return boxStyle.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderMessage() string {
	if m.messageErr {
		return statusError.Render(m.message)
	}
	return statusInfo.Render(m.message)
}

func (m Model) renderFooter() string {
	help := RenderKeyHelp(
		"↑/↓", "select",
		"t", "terminate",
		"x", "kill",
		"i", "interrupt",
		"d", "remove exited",
		"c", "cleanup",
		"C", "kill all",
		"q", "quit",
	)

	var endpoints []string
	if m.listenAddr != "" {
		endpoints = append(endpoints, "API: http://"+m.listenAddr)
	}
	if m.metricsAddr != "" {
		endpoints = append(endpoints, "Metrics: http://"+m.metricsAddr+"/metrics")
	}
	if len(endpoints) > 0 {
		help += "\n" + dimStyle.Render(strings.Join(endpoints, "  "))
	}

	return footerStyle.Render(help)
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
