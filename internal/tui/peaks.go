// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"specmon/internal/pipeline"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	peakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// keyMap defines the control surface: start, stop, clear, quit.
type keyMap struct {
	Start key.Binding
	Stop  key.Binding
	Clear key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Start: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
	Stop:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
	Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Messages delivered from the pipeline to the Bubble Tea model.
type resultMsg struct{ result *pipeline.PipelineResult }
type clearedMsg struct{}
type statusMsg struct{ text string }
type errMsg struct{ err error }

// Controller is the subset of the orchestrator the UI drives.
type Controller interface {
	Start() error
	Stop() error
	Clear()
}

// peaksModel is the Bubble Tea model for the live peak view.
type peaksModel struct {
	ctrl    Controller
	status  string
	err     error
	result  *pipeline.PipelineResult
	samples int
}

func (m peaksModel) Init() tea.Cmd {
	return nil
}

func (m peaksModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Start):
			ctrl := m.ctrl
			return m, func() tea.Msg {
				if err := ctrl.Start(); err != nil {
					return errMsg{err}
				}
				return nil
			}
		case key.Matches(msg, keys.Stop):
			ctrl := m.ctrl
			return m, func() tea.Msg {
				if err := ctrl.Stop(); err != nil {
					return errMsg{err}
				}
				return nil
			}
		case key.Matches(msg, keys.Clear):
			m.ctrl.Clear()
			return m, nil
		}

	case resultMsg:
		m.result = msg.result
		m.samples = len(msg.result.Waveform)
		m.err = nil
		return m, nil

	case clearedMsg:
		m.result = nil
		m.samples = 0
		m.status = "buffer cleared"
		return m, nil

	case statusMsg:
		m.status = msg.text
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m peaksModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("specmon · live spectrum peaks"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(statusStyle.Render(fmt.Sprintf("error: %v", m.err)))
	} else {
		b.WriteString(statusStyle.Render(fmt.Sprintf("status: %s (%d samples buffered)", m.status, m.samples)))
	}
	b.WriteString("\n\n")

	if m.result == nil || len(m.result.Peaks) == 0 {
		b.WriteString(dimStyle.Render("no peaks detected"))
	} else {
		b.WriteString(fmt.Sprintf("%-6s %-12s %s\n", "rank", "freq (Hz)", "mag (dB)"))
		for _, p := range m.result.Peaks {
			line := fmt.Sprintf("%-6d %-12.1f %.1f", p.Rank, p.FrequencyHz, p.MagnitudeDB)
			if p.Rank == 0 {
				line = peakStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("s start · x stop · c clear · q quit"))
	b.WriteString("\n")

	return b.String()
}

// UI runs the terminal view and forwards pipeline results into it.
// It implements pipeline.Renderer; deliveries are handed to the Bubble Tea
// runtime and never block the tick goroutine for long.
type UI struct {
	prog *tea.Program
}

var _ pipeline.Renderer = (*UI)(nil)

// New creates the UI bound to the given pipeline controller.
func New(ctrl Controller) *UI {
	model := peaksModel{ctrl: ctrl, status: "ready"}
	return &UI{prog: tea.NewProgram(model)}
}

// Run blocks until the user quits.
func (u *UI) Run() error {
	_, err := u.prog.Run()
	return err
}

// Quit asks the UI to exit; used on external shutdown signals.
func (u *UI) Quit() {
	u.prog.Quit()
}

func (u *UI) OnResult(result *pipeline.PipelineResult) {
	u.prog.Send(resultMsg{result: result})
}

func (u *UI) OnCleared() {
	u.prog.Send(clearedMsg{})
}

func (u *UI) OnStatus(text string) {
	u.prog.Send(statusMsg{text: text})
}
