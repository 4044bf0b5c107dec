package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/teranos/timelapse"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			MarginBottom(1)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)
)

const barWidth = 30

type eventMsg timelapse.Event

type doneMsg struct {
	result *timelapse.Result
	err    error
}

// progressModel follows a running session through its observer events.
type progressModel struct {
	folder string
	start  int
	end    int

	position int
	kind     timelapse.Kind
	step     int
	budget   int
	frames   int
	unsaved  int
	finished []string

	done   bool
	result *timelapse.Result
	err    error
}

func newProgressModel(cfg timelapse.Config) progressModel {
	return progressModel{folder: cfg.FolderName, start: cfg.Start, end: cfg.End}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case eventMsg:
		m.position = msg.Position
		m.kind = msg.Kind
		switch msg.Type {
		case timelapse.OperationStarted:
			m.step = 0
			m.budget = msg.Budget
		case timelapse.FrameEmitted:
			m.step = msg.Step + 1
			m.frames = msg.Frame + 1
			if !msg.Saved {
				m.unsaved++
			}
		case timelapse.OperationFinished:
			m.finished = append(m.finished, fmt.Sprintf("%d %s", msg.Position, msg.Kind))
		}

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

// fraction is the share of the range already walked.
func (m progressModel) fraction() float64 {
	total := m.end - m.start + 1
	if total <= 0 || m.position < m.start {
		return 0
	}
	if m.done {
		return 1
	}
	return float64(m.position-m.start) / float64(total)
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Timelapse " + m.folder))
	b.WriteString("\n")

	filled := int(m.fraction() * barWidth)
	b.WriteString(barStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(mutedStyle.Render(strings.Repeat("░", barWidth-filled)))
	b.WriteString(fmt.Sprintf(" %d/%d\n", m.position, m.end))

	if m.position > 0 && !m.done {
		b.WriteString(fmt.Sprintf("%s at %d, frame %d/%d\n", m.kind, m.position, m.step, m.budget))
	}
	b.WriteString(fmt.Sprintf("%d frames", m.frames))
	if m.unsaved > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf(", %d not saved", m.unsaved)))
	}
	b.WriteString("\n")

	if n := len(m.finished); n > 0 {
		recent := m.finished[max(0, n-5):]
		b.WriteString(mutedStyle.Render("done: " + strings.Join(recent, ", ")))
		b.WriteString("\n")
	}

	if m.done {
		if m.err != nil {
			b.WriteString(errorStyle.Render("failed: " + m.err.Error()))
		} else if m.result != nil {
			b.WriteString(fmt.Sprintf("finished in %s", m.result.Duration.Round(time.Millisecond)))
		}
		b.WriteString("\n")
	} else {
		b.WriteString(mutedStyle.Render("q to hide"))
		b.WriteString("\n")
	}
	return b.String()
}
