package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// readState is the lifecycle of a reading as shown in the status line.
type readState int

const (
	stateWaiting readState = iota
	statePlaying
	statePaused
	stateDone
	stateFailed
)

func (s readState) icon() string {
	switch s {
	case statePlaying:
		return "▶"
	case statePaused:
		return "⏸"
	case stateDone:
		return "■"
	case stateFailed:
		return "✗"
	default:
		return "⟳"
	}
}

func (s readState) color() lipgloss.Color {
	switch s {
	case statePlaying:
		return lipgloss.Color("#00FF00")
	case statePaused:
		return lipgloss.Color("#FFFF00")
	case stateDone:
		return lipgloss.Color("#888888")
	case stateFailed:
		return lipgloss.Color("#FF0000")
	default:
		return lipgloss.Color("#00AAFF")
	}
}

var (
	emptyBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// compactStatus renders the icon and the 1-based sentence counter.
func compactStatus(s readState, current, total int) string {
	if total == 0 {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(s.color())
	n := current + 1
	if n < 1 {
		n = 1
	}
	return style.Render(fmt.Sprintf("%s %d/%d", s.icon(), n, total))
}

// progressBar renders done out of total across width cells.
func progressBar(s readState, done, total, width int) string {
	if total <= 0 || width < 10 {
		return ""
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	style := lipgloss.NewStyle().Foreground(s.color())
	return style.Render(strings.Repeat("█", filled)) + emptyBarStyle.Render(strings.Repeat("░", width-filled))
}

// fit shortens s to width cells.
func fit(s string, width int) string {
	if width <= 3 {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "...")
}
