package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette shared by every box and step line. Matches the wizard's greens.
const (
	PrimaryColor = lipgloss.Color("#1B9E5A") // fairway green: borders, dividers
	SuccessColor = lipgloss.Color("#43BF6D")
	ErrorColor   = lipgloss.Color("#FF5555")
	WarningColor = lipgloss.Color("#FFA500")
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

// Output is clamped to this width range.
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

// resultKeyWidth aligns the values of a result box.
const resultKeyWidth = 18

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func bold(c lipgloss.Color) lipgloss.Style {
	return fg(c).Bold(true)
}

func indented(c lipgloss.Color) lipgloss.Style {
	return fg(c).PaddingLeft(2)
}

// Header
var (
	HeaderTitleStyle      = indented(TextColor).Bold(true)
	HeaderCommandStyle    = indented(MutedColor)
	HeaderParamKeyStyle   = indented(MutedColor)
	HeaderParamValueStyle = fg(TextColor)
)

// Progress
var (
	ProgressLabelStyle = indented(TextColor)
	StepCompleteStyle  = fg(SuccessColor)
	StepRunningStyle   = fg(WarningColor)
	StepPendingStyle   = fg(MutedColor)
	// StepNoteStyle renders the "(3 of 5 done)" suffix
	StepNoteStyle = fg(MutedColor).Italic(true)
)

// Result boxes
var (
	SuccessTitleStyle         = bold(SuccessColor)
	ErrorTitleStyle           = bold(ErrorColor)
	WarningTitleStyle         = bold(WarningColor)
	ErrorMessageStyle         = fg(ErrorColor)
	ResultKeyStyle            = fg(MutedColor).Width(resultKeyWidth)
	ResultValueStyle          = fg(TextColor)
	TroubleshootingTitleStyle = bold(MutedColor)
	TroubleshootingItemStyle  = fg(MutedColor)
)

// Event log
var (
	LogTitleStyle   = bold(MutedColor)
	LogContentStyle = fg(TextColor)
)

// Markers
const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "●"
	StepMarkerPending  = "·"
	StepMarkerSkipped  = "⊘"
	SuccessMarker      = "✓"
	FailureMarker      = "✗"
	WarningMarker      = "⚠"
)

// GetTerminalWidth returns the stdout width clamped to the supported range.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth
	}
	return clampWidth(width)
}

// IsTerminal reports whether stdout is attached to a terminal. The wizard
// refuses to start when it is not.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func clampWidth(width int) int {
	switch {
	case width < MinTerminalWidth:
		return MinTerminalWidth
	case width > MaxContentWidth:
		return MaxContentWidth
	default:
		return width
	}
}

// BoxStyle is the double border around headers and results.
func BoxStyle(width int, color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2)
}

// TroubleshootingBoxStyle is the inset box listing hints inside a failure.
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	inner := max(width-12, 40)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(inner).
		Padding(0, 1).
		MarginLeft(3)
}

// RenderHorizontalDivider draws a rule of char across width cells.
func RenderHorizontalDivider(width int, char string) string {
	return fg(PrimaryColor).Render(strings.Repeat(char, width))
}
