package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	canvasStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")).Bold(true)

	activeParamStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#ff00ff")).
				Background(lipgloss.Color("#1a001a"))
	stagedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaa00"))

	statusRunning = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	statusPaused  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00"))
	statusIdle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))

	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688")).Italic(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// Separator draws a muted rule with a centre mark.
func Separator(width int) string {
	if width < 8 {
		return strings.Repeat("─", max(width, 0))
	}
	mid := width / 2
	left := strings.Repeat("─", mid-3)
	right := strings.Repeat("─", width-mid-3)
	return helpStyle.Render(left + " ◆ " + right)
}

// ProgressBar draws a fixed-width gauge for ratio in [0, 1].
func ProgressBar(ratio float64, width int) string {
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
}
