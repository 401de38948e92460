package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/warroom/metrics"
)

// renderStats renders the client counters as a row of stat boxes.
func renderStats(s metrics.Snapshot) string {
	latency := "n/a"
	if s.LastLatencyMs >= 0 {
		latency = fmt.Sprintf("%dms", s.LastLatencyMs)
	}
	boxes := []string{
		renderStatBox("Frames", fmt.Sprintf("%d", s.FramesReceived), highlightColor),
		renderStatBox("Malformed", fmt.Sprintf("%d", s.FramesMalformed), warningColor),
		renderStatBox("Reconnects", fmt.Sprintf("%d", s.RetriesScheduled), warningColor),
		renderStatBox("Dropped", fmt.Sprintf("%d", s.SendsDropped), errorColor),
		renderStatBox("Latency", latency, successColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}
