// Package tui provides the live terminal dashboard for warroom watch.
//
// The dashboard is opt-in (--tui) and read-only: it renders the same
// client snapshots the other outputs use and never sends to the backend.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/warroom/transport"
	"github.com/pithecene-io/warroom/types"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// CardStyle frames one agent.
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1).
			Width(22)

	// SelectedCardStyle frames the agent the timeline is filtered by.
	SelectedCardStyle = CardStyle.
				BorderForeground(highlightColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 1).
			Width(14).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// AgentStatusStyle colors an agent status.
func AgentStatusStyle(s types.AgentStatus) lipgloss.Style {
	switch s {
	case types.AgentStable:
		return SuccessStyle
	case types.AgentActive:
		return WarningStyle
	case types.AgentIncident:
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// ConnectionStyle colors a connection state.
func ConnectionStyle(s transport.State) lipgloss.Style {
	switch s {
	case transport.Open:
		return SuccessStyle
	case transport.Connecting, transport.Closed:
		return WarningStyle
	case transport.Errored:
		return ErrorStyle
	default:
		return MutedStyle
	}
}

// SeverityStyle colors a timeline severity.
func SeverityStyle(s *types.Severity) lipgloss.Style {
	if s == nil {
		return MutedStyle
	}
	switch *s {
	case types.SeverityCritical:
		return ErrorStyle
	case types.SeverityWarning:
		return WarningStyle
	default:
		return MutedStyle
	}
}
