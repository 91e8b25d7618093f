package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// LogBox shows a tail of event log lines in verbose mode.
type LogBox struct {
	Title    string
	Lines    []string
	Width    int
	MaxLines int // 0 = unlimited
}

// NewLogBox creates a log box from newline separated content
func NewLogBox(title, content string) *LogBox {
	var lines []string
	if content != "" {
		lines = strings.Split(strings.TrimRight(content, "\n"), "\n")
	}
	return &LogBox{Title: title, Lines: lines, Width: GetTerminalWidth()}
}

// SetWidth sets the terminal width for responsive rendering
func (l *LogBox) SetWidth(width int) *LogBox {
	l.Width = width
	return l
}

// SetMaxLines keeps only the last max lines
func (l *LogBox) SetMaxLines(max int) *LogBox {
	l.MaxLines = max
	return l
}

// Append adds a line
func (l *LogBox) Append(format string, args ...interface{}) {
	l.Lines = append(l.Lines, fmt.Sprintf(format, args...))
}

// Filter keeps lines containing any of the patterns
func (l *LogBox) Filter(patterns ...string) *LogBox {
	var kept []string
	for _, line := range l.Lines {
		for _, p := range patterns {
			if strings.Contains(line, p) {
				kept = append(kept, line)
				break
			}
		}
	}
	l.Lines = kept
	return l
}

// Render returns the styled box
func (l *LogBox) Render() string {
	lines := l.Lines
	hidden := 0
	if l.MaxLines > 0 && len(lines) > l.MaxLines {
		hidden = len(lines) - l.MaxLines
		lines = lines[hidden:]
	}

	body := make([]string, 0, len(lines)+2)
	body = append(body, LogTitleStyle.Render(l.Title))
	if hidden > 0 {
		body = append(body, StepNoteStyle.Render(fmt.Sprintf("... %d earlier lines", hidden)))
	}
	body = append(body, LogContentStyle.Render(strings.Join(lines, "\n")))

	width := l.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-4).
		Padding(0, 1).
		Render(strings.Join(body, "\n"))
}

// String implements fmt.Stringer
func (l *LogBox) String() string {
	return l.Render()
}
