package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/warroom/client"
	"github.com/pithecene-io/warroom/metrics"
)

// Source is the client surface the dashboard reads. *client.Client
// satisfies it.
type Source interface {
	Subscribe(buffer int) (<-chan client.Update, func())
	Snapshot() *client.Snapshot
}

// Run shows the live dashboard until the user quits or ctx is done.
func Run(ctx context.Context, src Source, m *metrics.Collector) error {
	updates, unsubscribe := src.Subscribe(client.DefaultSubscriberBuffer)
	defer unsubscribe()

	model := NewDashboard(src.Snapshot(), updates, m)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return nil
	}
	return err
}

// RenderStatic renders one snapshot without starting a program.
func RenderStatic(s *client.Snapshot, m *metrics.Collector) string {
	model := NewDashboard(s, nil, m)
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
