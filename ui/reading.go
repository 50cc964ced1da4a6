// Package ui is the terminal view shown while a document is read aloud.
package ui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/readaloud/ttsengine/tts"
)

const defaultWidth = 80

// Controls is the part of an engine the view drives.
type Controls interface {
	Pause()
	Resume()
}

// EventMsg carries a playback event for utterance Index.
type EventMsg struct {
	Index int
	Event tts.Event
}

// DoneMsg reports that the reading finished. Err is nil on success.
type DoneMsg struct {
	Err error
}

// Model is the bubbletea model of a reading.
type Model struct {
	sentences []string
	current   int
	ended     int
	state     readState
	err       error
	width     int
	status    string

	spinner  spinner.Model
	controls Controls
	cancel   context.CancelFunc
}

// New creates a Model for sentences. cancel aborts the reading when the
// user quits.
func New(sentences []string, controls Controls, cancel context.CancelFunc) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		sentences: sentences,
		current:   -1,
		width:     defaultWidth,
		spinner:   sp,
		controls:  controls,
		cancel:    cancel,
	}
}

// Err returns the error the reading finished with.
func (m Model) Err() error {
	return m.err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		switch msg.Event.Type {
		case tts.EventStart:
			m.current = msg.Index
			if m.state != statePaused {
				m.state = statePlaying
			}
		case tts.EventEnd:
			m.ended = msg.Index + 1
		case tts.EventError:
			m.state = stateFailed
			m.err = msg.Event.Err
		}

	case DoneMsg:
		if msg.Err != nil && m.err == nil {
			m.err = msg.Err
		}
		if m.err != nil {
			m.state = stateFailed
		} else {
			m.state = stateDone
			m.ended = len(m.sentences)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		log.Debug("Reading stopped by user", "sentence", m.current+1)
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case " ", "p":
		switch m.state {
		case statePlaying:
			m.controls.Pause()
			m.state = statePaused
		case statePaused:
			m.controls.Resume()
			m.state = statePlaying
		}

	case "c":
		if s := m.sentence(); s != "" {
			// Copy using OSC 52
			termenv.Copy(s)
			// Copy using native system clipboard
			_ = clipboard.WriteAll(s)
			m.status = "Copied sentence"
		}
	}
	return m, nil
}

func (m Model) sentence() string {
	if m.current < 0 || m.current >= len(m.sentences) {
		return ""
	}
	return m.sentences[m.current]
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	status := compactStatus(m.state, m.current, len(m.sentences))
	if m.state == stateWaiting {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(status)
	if m.status != "" {
		b.WriteString("  " + helpStyle.Render(m.status))
	}
	b.WriteByte('\n')

	b.WriteString(fit(m.sentence(), m.width))
	b.WriteByte('\n')

	if bar := progressBar(m.state, m.ended, len(m.sentences), m.width); bar != "" {
		b.WriteString(bar)
		b.WriteByte('\n')
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fit("Error: "+tts.ErrorMessage(m.err), m.width)))
		b.WriteByte('\n')
	}
	if m.state != stateDone && m.state != stateFailed {
		b.WriteString(helpStyle.Render("space pause/resume • c copy • q quit"))
		b.WriteByte('\n')
	}
	return b.String()
}
