// Package ui implements the interactive SQL shell as a bubbletea program:
// a header with session counters, a textarea query editor, a viewport with
// the latest result below, and a status bar of key hints.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tinydb/pkg/database"
)

// Model represents the application state
type Model struct {
	database    *database.Database
	queryEditor textarea.Model
	resultView  viewport.Model
	spinner     spinner.Model
	help        help.Model

	width     int
	height    int
	executing bool
	showHelp  bool

	lastResult    database.QueryResult
	hasResult     bool
	lastQueryTime time.Duration
	queryHistory  []string

	keys keyMap
}

// queryResultMsg carries an executed query's outcome back into Update.
type queryResultMsg struct {
	query    string
	result   database.QueryResult
	duration time.Duration
}

// NewModel builds the shell model around an open database.
func NewModel(db *database.Database) Model {
	ta := textarea.New()
	ta.Placeholder = "Enter your SQL query here..."
	ta.CharLimit = 5000
	ta.ShowLineNumbers = true
	ta.SetHeight(5)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle().Background(bgLight)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(textMuted)
	ta.FocusedStyle.Text = lipgloss.NewStyle().Foreground(textPrimary)
	ta.FocusedStyle.LineNumber = lipgloss.NewStyle().Foreground(textMuted)

	vp := viewport.New(80, 12)
	vp.Style = resultStyle

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		database:     db,
		queryEditor:  ta,
		resultView:   vp,
		spinner:      sp,
		help:         help.New(),
		keys:         keys,
		queryHistory: make([]string, 0),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textarea.Blink,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()

	case tea.KeyMsg:
		if m.executing {
			return m, nil // Ignore input while executing
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Execute):
			query := m.queryEditor.Value()
			if strings.TrimSpace(query) != "" {
				m.executing = true
				return m, m.executeQuery(query)
			}

		case key.Matches(msg, m.keys.Clear):
			m.queryEditor.SetValue("")
			m.lastResult = database.QueryResult{}
			m.hasResult = false

		case key.Matches(msg, m.keys.ShowTables):
			m.lastResult = m.showTables()
			m.hasResult = true
			m.updateResultDisplay()

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
		}

	case queryResultMsg:
		m.executing = false
		m.lastResult = msg.result
		m.hasResult = true
		m.lastQueryTime = msg.duration
		if msg.result.Success {
			m.queryHistory = append(m.queryHistory, msg.query)
		}
		m.updateResultDisplay()

	case spinner.TickMsg:
		if m.executing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	if !m.executing {
		var cmd tea.Cmd
		m.queryEditor, cmd = m.queryEditor.Update(msg)
		cmds = append(cmds, cmd)

		m.resultView, cmd = m.resultView.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderQueryEditor())

	switch {
	case m.executing:
		sections = append(sections, m.renderExecuting())
	case m.hasResult:
		sections = append(sections, m.renderResult())
	}

	sections = append(sections, m.renderStatusBar())

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	}

	return appStyle.Render(strings.Join(sections, "\n"))
}

// executeQuery runs the statement off the Update loop and reports back with
// a queryResultMsg.
func (m Model) executeQuery(query string) tea.Cmd {
	db := m.database
	return func() tea.Msg {
		start := time.Now()
		result := db.ExecuteQuery(query)
		return queryResultMsg{
			query:    query,
			result:   result,
			duration: time.Since(start),
		}
	}
}

// showTables synthesizes a result listing the catalog's user tables.
func (m Model) showTables() database.QueryResult {
	names := m.database.TableNames()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name})
	}
	return database.QueryResult{
		Success: true,
		Columns: []string{"table_name"},
		Rows:    rows,
		Message: fmt.Sprintf("%d table(s)", len(names)),
	}
}

func (m *Model) updateResultDisplay() {
	m.resultView.SetContent(database.FormatTable(m.lastResult))
	m.resultView.GotoTop()
}

func (m *Model) updateLayout() {
	editorWidth := m.width - 8
	if editorWidth < 20 {
		editorWidth = 20
	}
	m.queryEditor.SetWidth(editorWidth)
	m.resultView.Width = editorWidth

	resultHeight := m.height - m.queryEditor.Height() - 10
	if resultHeight < 5 {
		resultHeight = 5
	}
	m.resultView.Height = resultHeight
}

func (m Model) renderHeader() string {
	stats := m.database.Stats()

	title := titleStyle.Render("tinydb")
	badge := dbBadgeStyle.Render(m.database.Path())
	counters := lipgloss.NewStyle().
		Foreground(textSecondary).
		Render(fmt.Sprintf("Tables: %d | Queries: %d | Errors: %d",
			len(m.database.TableNames()), stats.QueriesExecuted, stats.ErrorCount))

	header := lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", badge, "  ", counters)

	separatorWidth := m.width - 4
	if separatorWidth < 0 {
		separatorWidth = 0
	}
	separator := lipgloss.NewStyle().
		Foreground(bgLight).
		Render(strings.Repeat("─", separatorWidth))

	return header + "\n" + separator
}

func (m Model) renderQueryEditor() string {
	label := lipgloss.NewStyle().
		Foreground(primaryColor).
		Bold(true).
		Render("SQL")

	return fmt.Sprintf("%s\n%s", label, editorStyle.Render(m.queryEditor.View()))
}

func (m Model) renderExecuting() string {
	content := lipgloss.JoinHorizontal(
		lipgloss.Left,
		m.spinner.View(),
		" Executing query...",
	)

	return lipgloss.NewStyle().
		Foreground(primaryColor).
		Padding(1, 0).
		Render(content)
}

func (m Model) renderResult() string {
	if !m.lastResult.Success {
		icon := errorStyle.Render(" ERROR ")
		message := lipgloss.NewStyle().
			Foreground(errorColor).
			Render(m.lastResult.Message)
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(errorColor).
			Padding(0, 1).
			Render(fmt.Sprintf("%s %s", icon, message))
	}

	badge := successStyle.Render(" OK ")
	timing := lipgloss.NewStyle().
		Foreground(textMuted).
		Render(fmt.Sprintf(" %s", m.lastQueryTime.Round(time.Microsecond)))

	return fmt.Sprintf("%s%s\n%s", badge, timing, m.resultView.View())
}

func (m Model) renderStatusBar() string {
	hints := "ctrl+e execute · ctrl+l clear · ctrl+t tables · ctrl+h help · ctrl+c quit"
	return statusBarStyle.Render(hints)
}

func (m Model) renderHelp() string {
	helpText := m.help.FullHelpView([][]key.Binding{
		{
			m.keys.Execute,
			m.keys.Clear,
			m.keys.ShowTables,
			m.keys.Help,
			m.keys.Quit,
		},
		{
			m.keys.ScrollUp,
			m.keys.ScrollDown,
		},
	})

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(primaryColor).
		Padding(1, 2).
		Render(helpText)
}
