package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/warroom/client"
	"github.com/pithecene-io/warroom/metrics"
	"github.com/pithecene-io/warroom/types"
)

// headerHeight is the space reserved above the timeline viewport for the
// status line, agent cards, rooms and stats.
const headerHeight = 16

// updateMsg carries one client update into the model.
type updateMsg client.Update

// streamClosedMsg reports that the client was disposed.
type streamClosedMsg struct{}

// waitForUpdate blocks on the next update. Re-issued after every update.
func waitForUpdate(ch <-chan client.Update) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return updateMsg(u)
	}
}

// DashboardModel is the Bubble Tea model for the live dashboard.
type DashboardModel struct {
	snapshot *client.Snapshot
	updates  <-chan client.Update
	metrics  *metrics.Collector

	// filter is the agent the timeline is restricted to; empty shows all.
	filter string
	// clearedAt hides timeline events pushed before it. Compared against
	// the mirror's monotonically increasing push count.
	clearedAt uint64

	viewport viewport.Model
	help     help.Model
	width    int
	height   int
	closed   bool
	quitting bool
}

// NewDashboard creates a dashboard over an initial snapshot and an update
// stream. updates and m may be nil.
func NewDashboard(snapshot *client.Snapshot, updates <-chan client.Update, m *metrics.Collector) DashboardModel {
	d := DashboardModel{
		snapshot: snapshot,
		updates:  updates,
		metrics:  m,
		viewport: viewport.New(80, 10),
		help:     help.New(),
		width:    80,
		height:   headerHeight + 10,
	}
	d.refreshTimeline()
	return d
}

// Init implements tea.Model.
func (m DashboardModel) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

// Update implements tea.Model.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-headerHeight, 3)
		m.help.Width = msg.Width
		m.refreshTimeline()
		return m, nil

	case updateMsg:
		m.snapshot = msg.Snapshot
		m.refreshTimeline()
		return m, waitForUpdate(m.updates)

	case streamClosedMsg:
		m.closed = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Filter):
			m.filter = m.nextFilter()
			m.viewport.GotoTop()
			m.refreshTimeline()
			return m, nil
		case key.Matches(msg, keys.Clear):
			if m.snapshot != nil && m.snapshot.Mirror != nil {
				m.clearedAt = m.snapshot.Mirror.TimelineTotal()
			}
			m.refreshTimeline()
			return m, nil
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// Filter returns the agent the timeline is filtered by.
func (m DashboardModel) Filter() string { return m.filter }

// nextFilter cycles all → first agent → ... → last agent → all.
func (m DashboardModel) nextFilter() string {
	agents := m.agents()
	if len(agents) == 0 {
		return ""
	}
	if m.filter == "" {
		return agents[0].Name
	}
	for i, a := range agents {
		if a.Name == m.filter {
			if i+1 < len(agents) {
				return agents[i+1].Name
			}
			return ""
		}
	}
	return ""
}

func (m DashboardModel) agents() []types.AgentRecord {
	if m.snapshot == nil || m.snapshot.Mirror == nil {
		return nil
	}
	return m.snapshot.Mirror.Agents()
}

// VisibleTimeline returns the events shown, newest first: those pushed
// since the last clear, restricted to the filtered agent.
func (m DashboardModel) VisibleTimeline() []types.TimelineEvent {
	if m.snapshot == nil || m.snapshot.Mirror == nil {
		return nil
	}
	mirror := m.snapshot.Mirror
	events := mirror.Timeline()
	first := mirror.TimelineTotal() - uint64(len(events))

	var out []types.TimelineEvent
	for i := len(events) - 1; i >= 0; i-- {
		if first+uint64(i) < m.clearedAt {
			break
		}
		if m.filter != "" && events[i].Agent != m.filter {
			continue
		}
		out = append(out, events[i])
	}
	return out
}

func (m *DashboardModel) refreshTimeline() {
	events := m.VisibleTimeline()
	if len(events) == 0 {
		m.viewport.SetContent(MutedStyle.Render("(no events)"))
		return
	}
	var b strings.Builder
	for i, e := range events {
		if i > 0 {
			b.WriteString("\n")
		}
		ts := "--:--:--"
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.Local().Format("15:04:05")
		}
		b.WriteString(fmt.Sprintf("%s %s %s %s",
			MutedStyle.Render(ts),
			SeverityStyle(e.Severity).Render(fmt.Sprintf("%-10s", e.Agent)),
			ValueStyle.Render(e.Action),
			e.Message))
	}
	m.viewport.SetContent(b.String())
}

// View implements tea.Model.
func (m DashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n\n")
	b.WriteString(m.renderAgents())
	b.WriteString("\n")
	b.WriteString(m.renderRooms())
	b.WriteString("\n")
	if m.filter != "" {
		if a, ok := m.snapshot.Mirror.Agent(m.filter); ok {
			b.WriteString(renderAgentDetail(a))
			b.WriteString("\n")
		}
	}
	b.WriteString(m.renderTimelineHeader())
	b.WriteString("\n")
	b.WriteString(BoxStyle.Width(max(m.width-2, 20)).Render(m.viewport.View()))
	b.WriteString("\n")
	if m.metrics != nil {
		b.WriteString(renderStats(m.metrics.Snapshot()))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(keys))
	return b.String()
}

// renderStatusLine shows connectivity and latency.
func (m DashboardModel) renderStatusLine() string {
	title := TitleStyle.Render("WAR ROOM")
	if m.snapshot == nil {
		return title + "  " + MutedStyle.Render("waiting for client")
	}
	s := m.snapshot

	status := s.Status.String()
	switch {
	case s.Reconnecting():
		status = fmt.Sprintf("reconnecting (%d/%d)", s.Reconnect.Attempt, s.Reconnect.MaxAttempts)
	case m.closed:
		status = "disposed"
	}
	parts := []string{
		title,
		ConnectionStyle(s.Status).Render("● " + status),
		LabelStyle.Width(0).Render("latency") + " " + ValueStyle.Render(s.Latency.String()),
	}
	if s.Err != nil {
		parts = append(parts, ErrorStyle.Render(s.Err.Error()))
	}
	return strings.Join(parts, "  ")
}

func (m DashboardModel) renderAgents() string {
	agents := m.agents()
	if len(agents) == 0 {
		return MutedStyle.Render("(no agents)")
	}
	cards := make([]string, 0, len(agents))
	for _, a := range agents {
		style := CardStyle
		if a.Name == m.filter {
			style = SelectedCardStyle
		}
		room := MutedStyle.Render("no room")
		if a.InRoom() {
			room = ValueStyle.Render(*a.ActiveRoomID)
		}
		body := lipgloss.JoinVertical(lipgloss.Left,
			ValueStyle.Bold(true).Render(a.Name),
			MutedStyle.Render(a.Domain),
			AgentStatusStyle(a.Status).Render(string(a.Status)),
			room,
		)
		cards = append(cards, style.Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m DashboardModel) renderRooms() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("War rooms"))
	b.WriteString("\n")
	if m.snapshot == nil || m.snapshot.Mirror == nil || len(m.snapshot.Mirror.Rooms()) == 0 {
		b.WriteString(MutedStyle.Render("  (none active)"))
		return b.String()
	}
	for _, r := range m.snapshot.Mirror.Rooms() {
		line := fmt.Sprintf("  %s %s", ValueStyle.Render(r.ID), strings.Join(r.ParticipantNames, ", "))
		if r.RelatedIncident != nil {
			line += " " + WarningStyle.Render("incident "+*r.RelatedIncident)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m DashboardModel) renderTimelineHeader() string {
	header := TitleStyle.Render("Timeline")
	if m.filter != "" {
		header += " " + MutedStyle.Render("agent="+m.filter)
	}
	if m.clearedAt > 0 {
		header += " " + MutedStyle.Render("(cleared)")
	}
	return header
}
