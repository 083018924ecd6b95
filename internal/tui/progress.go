package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bitmage/claude-habitat-sub001/internal/pipeline"
	hprogress "github.com/bitmage/claude-habitat-sub001/internal/progress"
)

// ErrInterrupted is returned when the user aborts the build view.
var ErrInterrupted = errors.New("interrupted")

type stageStatus int

const (
	stageRunning stageStatus = iota
	stagePassed
	stageFailed
)

type stageRow struct {
	name     string
	status   stageStatus
	duration time.Duration
	err      string
}

// eventMsg carries one pipeline event into the model.
type eventMsg pipeline.Event

// streamClosedMsg signals that no more events will arrive.
type streamClosedMsg struct{}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// BuildProgress is the bubbletea model that follows a build pipeline.
type BuildProgress struct {
	title       string
	events      <-chan pipeline.Event
	rows        []stageRow
	total       int
	percent     float64
	bar         progress.Model
	spinner     spinner.Model
	finished    bool
	failure     string
	interrupted bool
	width       int
}

// NewBuildProgress creates a model reading from events until the channel
// is closed.
func NewBuildProgress(title string, events <-chan pipeline.Event) BuildProgress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return BuildProgress{
		title:   title,
		events:  events,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner: s,
	}
}

func waitForEvent(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(e)
	}
}

func (m BuildProgress) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m BuildProgress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-4, 10), 60)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(pipeline.Event(msg))
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.finished = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *BuildProgress) apply(e pipeline.Event) {
	if e.TotalStages > 0 {
		m.total = e.TotalStages
	}

	switch e.Type {
	case pipeline.EventStageStart:
		m.rows = append(m.rows, stageRow{name: e.Stage, status: stageRunning})
	case pipeline.EventStageComplete:
		if len(m.rows) == 0 {
			m.rows = append(m.rows, stageRow{name: e.Stage})
		}
		row := &m.rows[len(m.rows)-1]
		row.duration = e.Duration
		row.status = stagePassed
		if e.Result == pipeline.ResultFail {
			row.status = stageFailed
			if e.Err != nil {
				row.err = e.Err.Error()
			}
		}
	case pipeline.EventPipelineError:
		if e.Err != nil {
			m.failure = e.Err.Error()
		}
	}

	if e.Type == pipeline.EventStageStart || e.Type == pipeline.EventStageComplete || e.Type == pipeline.EventPipelineComplete {
		m.percent = float64(e.Progress) / 100
	}
}

func (m BuildProgress) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	errWidth := 60
	if m.width > 20 {
		errWidth = m.width - 8
	}

	for _, row := range m.rows {
		switch row.status {
		case stageRunning:
			fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), row.name)
		case stagePassed:
			fmt.Fprintf(&b, "%s %s %s\n", passStyle.Render("✓"), row.name, dimStyle.Render(row.duration.Round(100*time.Millisecond).String()))
		case stageFailed:
			fmt.Fprintf(&b, "%s %s %s\n", failStyle.Render("✗"), row.name, dimStyle.Render(row.duration.Round(100*time.Millisecond).String()))
			if row.err != "" {
				fmt.Fprintf(&b, "    %s\n", failStyle.Render(hprogress.Truncate(row.err, errWidth)))
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.percent))
	if m.total > 0 {
		fmt.Fprintf(&b, " %d/%d", m.completed(), m.total)
	}
	b.WriteString("\n")

	if m.failure != "" {
		b.WriteString(failStyle.Render("Build failed"))
		b.WriteString("\n")
	}

	if !m.finished {
		b.WriteString(helpStyle.Render("ctrl+c: abort"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m BuildProgress) completed() int {
	n := 0
	for _, row := range m.rows {
		if row.status != stageRunning {
			n++
		}
	}
	return n
}

// RunBuildProgress shows the build view until events is closed. It
// returns ErrInterrupted when the user pressed ctrl+c.
func RunBuildProgress(title string, events <-chan pipeline.Event) error {
	p := tea.NewProgram(NewBuildProgress(title, events))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress view failed: %w", err)
	}

	if m, ok := final.(BuildProgress); ok && m.interrupted {
		return ErrInterrupted
	}
	return nil
}
