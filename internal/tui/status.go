// Package tui renders the tracked unit-of-work status while dispatches
// run. It is a thin consumer of the status projector; all state lives in
// the tracker.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/foreman/internal/status"
	"github.com/ShayCichocki/foreman/internal/tracker"
)

// tickMsg drives the periodic redraw.
type tickMsg time.Time

// doneMsg ends the program when the orchestration finishes.
type doneMsg struct{}

// StatusModel displays projector rows on a fixed refresh tick.
type StatusModel struct {
	tracker  *tracker.Tracker
	pipeline bool
	refresh  time.Duration
	spinner  spinner.Model
	finished <-chan struct{}
	quitting bool

	titleStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	previewStyle lipgloss.Style
	elapsedStyle lipgloss.Style

	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	idleStyle    lipgloss.Style
}

// NewStatusModel creates the status panel. finished, when closed, ends
// the program after a final redraw.
func NewStatusModel(tr *tracker.Tracker, pipeline bool, refresh time.Duration, finished <-chan struct{}) StatusModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))

	return StatusModel{
		tracker:  tr,
		pipeline: pipeline,
		refresh:  refresh,
		spinner:  sp,
		finished: finished,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		previewStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		elapsedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		runningStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		idleStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Init starts the tick loop and the finish watcher.
func (m StatusModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.watchFinished(), m.spinner.Tick)
}

func (m StatusModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m StatusModel) watchFinished() tea.Cmd {
	return func() tea.Msg {
		<-m.finished
		return doneMsg{}
	}
}

// Update handles ticks, completion, and quit keys.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tracker.Tick()
		return m, m.tick()
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders one row per tracked unit.
func (m StatusModel) View() string {
	rows := status.Project(m.tracker.Snapshot(), m.pipeline)

	var b strings.Builder
	b.WriteString(m.titleStyle.Render("foreman"))
	b.WriteString("\n\n")

	for _, row := range rows {
		glyph := row.Glyph
		style := m.idleStyle
		switch glyph {
		case status.GlyphRunning:
			style = m.runningStyle
			glyph = "[" + m.spinner.View() + "]"
		case status.GlyphDone:
			style = m.doneStyle
		case status.GlyphError:
			style = m.errorStyle
		}

		line := fmt.Sprintf("%s %-24s %s",
			style.Render(glyph),
			m.labelStyle.Render(row.Label),
			m.elapsedStyle.Render(fmt.Sprintf("%4ds", row.ElapsedSeconds)),
		)
		if row.Preview != "" {
			line += "  " + m.previewStyle.Render(row.Preview)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if !m.quitting {
		b.WriteString("\n")
		b.WriteString(m.elapsedStyle.Render("q to quit"))
	}
	return b.String()
}
