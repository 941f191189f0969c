package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/LeonardoBeccarini/firelinx/internal/model"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

var (
	colorPrimary = lipgloss.Color("#FF8C42") // arancio fiamma
	colorDanger  = lipgloss.Color("#FF6B6B")
	colorSevere  = lipgloss.Color("#FF8C42")
	colorWarning = lipgloss.Color("#FFD93D")
	colorSuccess = lipgloss.Color("#6BCF7F")
	colorMuted   = lipgloss.Color("#6C757D")
	colorBorder  = lipgloss.Color("#4A90E2")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(1, 0, 0, 0)

	intensityStyles = map[model.FireIntensity]lipgloss.Style{
		"4": lipgloss.NewStyle().Foreground(colorDanger).Bold(true),
		"3": lipgloss.NewStyle().Foreground(colorSevere).Bold(true),
		"2": lipgloss.NewStyle().Foreground(colorWarning).Bold(true),
		"1": lipgloss.NewStyle().Foreground(colorSuccess),
	}
)

func intensityStyle(i model.FireIntensity) lipgloss.Style {
	if s, ok := intensityStyles[i]; ok {
		return s
	}
	return mutedStyle
}

func stateStyle(s broker.State) lipgloss.Style {
	switch s {
	case broker.StateConnected:
		return lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	case broker.StateConnecting, broker.StateReconnecting:
		return lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	case broker.StateClosed:
		return lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	}
	return mutedStyle
}
