// Package tui provides the Bubble Tea stopwatch interface.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/laplog"
	"github.com/verte-zerg/lapwatch/internal/model"
)

// tapHold is how long a tap keeps the keyboard button down.
const tapHold = 80 * time.Millisecond

// Button is the keyboard-driven input line.
type Button interface {
	Drive(state model.PressState) bool
}

// Model implements the Bubble Tea stopwatch UI.
type Model struct {
	config model.Config
	button Button

	width  int
	height int

	elapsed  model.Snapshot
	laps     []model.LapRecord
	lapTable table.Model
	lit      bool
	held     bool
	tapSeq   int
	flashing bool
	flashSeq int
	err      error
}

var (
	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Background(lipgloss.Color("12")).
			Bold(true).
			Padding(0, 2)
	flashStyle  = timeStyle.Copy().Background(lipgloss.Color("#FF4D4F"))
	litStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	darkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// NewModel constructs the stopwatch UI. button may be nil when only hardware
// inputs are configured.
func NewModel(cfg model.Config, button Button) *Model {
	return &Model{
		config:   cfg,
		button:   button,
		lapTable: newLapTable(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeTable()
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tickMsg:
		m.elapsed = msg.snap
		return m, nil
	case lapMsg:
		m.laps = append(m.laps, msg.rec)
		m.refreshTable()
		return m, nil
	case clearedMsg:
		m.laps = nil
		m.refreshTable()
		return m, nil
	case indicatorMsg:
		m.lit = msg.on
		return m, nil
	case confirmMsg:
		m.flashing = true
		m.flashSeq++
		seq := m.flashSeq
		return m, tea.Tick(m.config.ConfirmPulse, func(time.Time) tea.Msg {
			return flashDoneMsg{seq: seq}
		})
	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flashing = false
		}
		return m, nil
	case tapReleaseMsg:
		if msg.seq == m.tapSeq && m.held {
			m.drive(model.Released)
		}
		return m, nil
	case stoppedMsg:
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeySpace:
		if m.held {
			m.drive(model.Released)
		} else {
			m.drive(model.Pressed)
		}
		return nil
	case tea.KeyEnter:
		if m.held || !m.drive(model.Pressed) {
			return nil
		}
		m.tapSeq++
		seq := m.tapSeq
		return tea.Tick(tapHold, func(time.Time) tea.Msg {
			return tapReleaseMsg{seq: seq}
		})
	case tea.KeyRunes:
		if string(msg.Runes) == "q" {
			return tea.Quit
		}
	}
	return nil
}

func (m *Model) drive(state model.PressState) bool {
	if m.button == nil {
		return false
	}
	if !m.button.Drive(state) {
		return false
	}
	m.held = state == model.Pressed
	return true
}

// View implements tea.Model.
func (m *Model) View() string {
	clockLine := m.renderClock()
	body := clockLine
	if len(m.laps) > 0 {
		body = lipgloss.JoinVertical(lipgloss.Center, clockLine, "", m.lapTable.View())
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height < 3 {
		return body + "\n" + footer
	}
	bodyHeight := m.height - 1
	content := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, body)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return content + "\n" + footerLine
}

func (m *Model) renderClock() string {
	dot := darkStyle.Render("●")
	if m.lit {
		dot = litStyle.Render("●")
	}
	style := timeStyle
	if m.flashing {
		style = flashStyle
	}
	return dot + " " + style.Render(m.elapsed.String())
}

func (m *Model) renderFooter() string {
	segments := []string{
		fmt.Sprintf("Mode %s", m.config.Variant),
		fmt.Sprintf("Long press %s", clock.Decompose(m.config.LongPressCs).String()),
		fmt.Sprintf("Laps %d", len(m.laps)),
	}
	if m.button != nil {
		segments = append(segments, "space hold/release · enter tap · q quit")
	} else {
		segments = append(segments, "hardware input · q quit")
	}
	footer := footerStyle.Render(strings.Join(segments, "  "))
	if m.err != nil {
		footer += "  " + errorStyle.Render(m.err.Error())
	}
	return footer
}

func newLapTable() table.Model {
	t := table.New(
		table.WithColumns(lapColumns()),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true)
	styles.Selected = styles.Cell.Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	t.SetStyles(styles)
	return t
}

func lapColumns() []table.Column {
	return []table.Column{
		{Title: "Lap", Width: 5},
		{Title: "Time", Width: 12},
		{Title: "Split", Width: 13},
	}
}

func lapRows(laps []model.LapRecord) []table.Row {
	rows := make([]table.Row, 0, len(laps))
	for i := len(laps) - 1; i >= 0; i-- {
		rows = append(rows, table.Row{
			fmt.Sprintf("(%d)", laps[i].Index),
			clock.Decompose(laps[i].Elapsed).String(),
			"+" + clock.Decompose(laplog.Split(laps, i)).String(),
		})
	}
	return rows
}

func (m *Model) refreshTable() {
	m.lapTable.SetRows(lapRows(m.laps))
	m.lapTable.GotoTop()
}

func (m *Model) resizeTable() {
	if m.height <= 0 {
		return
	}
	h := m.height - 5
	if h < 2 {
		h = 2
	}
	m.lapTable.SetHeight(h)
}
