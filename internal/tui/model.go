package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-procsup/internal/process"
	"github.com/randomizedcoder/go-procsup/internal/report"
	"github.com/randomizedcoder/go-procsup/internal/stats"
	"github.com/randomizedcoder/go-procsup/internal/supervisor"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// ActionMsg carries the outcome of a kill or cleanup started from a key.
type ActionMsg struct {
	Text string
	Err  error
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Supervisor is the registry surface the dashboard drives.
type Supervisor interface {
	List() []supervisor.Status
	Read(id string, lines int, clear bool) (*supervisor.ReadResult, error)
	Kill(id string, sig process.Signal, remove bool) (*supervisor.KillResult, error)
	Cleanup(killAll bool) *supervisor.CleanupResult
}

// Config holds TUI configuration.
type Config struct {
	Supervisor  Supervisor
	InstanceID  string
	Version     string
	ListenAddr  string
	MetricsAddr string

	// OutputLines is how many lines of the selected process are shown.
	OutputLines int
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	sup         Supervisor
	instanceID  string
	version     string
	listenAddr  string
	metricsAddr string
	outputLines int

	// Current state
	table      table.Model
	statuses   []supervisor.Status
	selectedID string
	output     []string
	message    string
	messageErr bool
	pending    int
	startTime  time.Time
	lastUpdate time.Time

	// Display options
	width  int
	height int

	// Quit flag
	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	if cfg.OutputLines <= 0 {
		cfg.OutputLines = 10
	}

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithWidth(80-4),
		table.WithHeight(8),
	)
	t.SetStyles(tableStyles())

	return Model{
		sup:         cfg.Supervisor,
		instanceID:  cfg.InstanceID,
		version:     cfg.Version,
		listenAddr:  cfg.ListenAddr,
		metricsAddr: cfg.MetricsAddr,
		outputLines: cfg.OutputLines,
		table:       t,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// columns sizes the process table so a row fits inside the bordered box.
func columns(width int) []table.Column {
	const (
		fixed       = 14 + 7 + 18 + 8 + 6
		cellPadding = 6 * 2
		box         = 4
	)
	cmdWidth := width - fixed - cellPadding - box
	if cmdWidth < 10 {
		cmdWidth = 10
	}
	return []table.Column{
		{Title: "ID", Width: 14},
		{Title: "PID", Width: 7},
		{Title: "Status", Width: 18},
		{Title: "Elapsed", Width: 8},
		{Title: "Lines", Width: 6},
		{Title: "Command", Width: cmdWidth},
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(refreshCmd(), tickCmd())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetWidth(msg.Width - 4)
		m.table.SetHeight(m.tableHeight())
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()

	case refreshMsg:
		m.refresh()
		return m, nil

	case ActionMsg:
		if m.pending > 0 {
			m.pending--
		}
		if msg.Err != nil {
			m.message = strings.TrimSpace(report.Error(msg.Err))
			m.messageErr = true
		} else {
			m.message = msg.Text
			m.messageErr = false
		}
		m.refresh()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// handleKey maps key presses to table navigation and registry actions.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "t":
		return m.killSelected(process.SignalTerminate, false)
	case "x":
		return m.killSelected(process.SignalKill, false)
	case "i":
		return m.killSelected(process.SignalInterrupt, false)

	case "d":
		st, ok := m.Selected()
		if !ok {
			return m, nil
		}
		if !st.Exited {
			m.message = fmt.Sprintf("%s is still running; stop it with t or x first", st.ID)
			m.messageErr = true
			return m, nil
		}
		return m.killSelected(process.SignalTerminate, true)

	case "c":
		return m.startAction("Cleaning up exited processes...", cleanupCmd(m.sup, false))
	case "C":
		return m.startAction("Terminating and removing all processes...", cleanupCmd(m.sup, true))

	case "r":
		return m, refreshCmd()
	}

	// Everything else (arrows, page keys) moves the table cursor
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	m.syncSelection()
	return m, cmd
}

func (m Model) killSelected(sig process.Signal, remove bool) (tea.Model, tea.Cmd) {
	st, ok := m.Selected()
	if !ok {
		return m, nil
	}
	text := fmt.Sprintf("Sending %s to %s...", sig, st.ID)
	if remove {
		text = fmt.Sprintf("Removing %s...", st.ID)
	}
	return m.startAction(text, killCmd(m.sup, st.ID, sig, remove))
}

func (m Model) startAction(text string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.message = text
	m.messageErr = false
	m.pending++
	return m, cmd
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// State
// =============================================================================

// refresh re-reads the registry, keeping the selection on the same id.
func (m *Model) refresh() {
	if m.sup == nil {
		return
	}

	m.statuses = m.sup.List()
	rows := make([]table.Row, 0, len(m.statuses))
	cursor := 0
	for i, st := range m.statuses {
		rows = append(rows, statusRow(st))
		if st.ID == m.selectedID {
			cursor = i
		}
	}
	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(cursor)
	}
	m.syncSelection()
	m.lastUpdate = time.Now()
}

// syncSelection records the selected id and loads its recent output.
func (m *Model) syncSelection() {
	st, ok := m.Selected()
	if !ok {
		m.selectedID = ""
		m.output = nil
		return
	}
	m.selectedID = st.ID

	res, err := m.sup.Read(st.ID, m.outputLines, false)
	if err != nil {
		m.output = nil
		return
	}
	m.output = res.Lines
}

func statusRow(st supervisor.Status) table.Row {
	status := st.StatusText()
	if !st.Exited && st.Signal != "" {
		status = "running (" + st.Signal + ")"
	}
	return table.Row{
		st.ID,
		fmt.Sprintf("%d", st.PID),
		status,
		stats.FormatLifetime(st.Elapsed),
		fmt.Sprintf("%d", st.OutputLines),
		st.Command,
	}
}

func (m Model) tableHeight() int {
	// Header, footer, output panel and borders take the rest
	h := m.height - m.outputLines - 12
	if h < 3 {
		h = 3
	}
	return h
}

// =============================================================================
// Commands
// =============================================================================

type refreshMsg struct{}

func refreshCmd() tea.Cmd {
	return func() tea.Msg { return refreshMsg{} }
}

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// killCmd runs Kill off the UI loop; it blocks for the settle period.
func killCmd(sup Supervisor, id string, sig process.Signal, remove bool) tea.Cmd {
	return func() tea.Msg {
		res, err := sup.Kill(id, sig, remove)
		if err != nil {
			return ActionMsg{Err: err}
		}
		return ActionMsg{Text: firstLine(report.Kill(res))}
	}
}

func cleanupCmd(sup Supervisor, killAll bool) tea.Cmd {
	return func() tea.Msg {
		res := sup.Cleanup(killAll)
		return ActionMsg{Text: strings.ReplaceAll(strings.TrimSpace(report.Cleanup(res)), "\n", "; ")}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// =============================================================================
// Accessors
// =============================================================================

// Selected returns the status under the cursor.
func (m Model) Selected() (supervisor.Status, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.statuses) {
		return supervisor.Status{}, false
	}
	return m.statuses[i], true
}

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Counts returns (tracked, running) from the last refresh.
func (m Model) Counts() (int, int) {
	running := 0
	for _, st := range m.statuses {
		if !st.Exited {
			running++
		}
	}
	return len(m.statuses), running
}

// Message returns the last action message.
func (m Model) Message() string {
	return m.message
}

// =============================================================================
// Program
// =============================================================================

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
