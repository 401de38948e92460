package tui

import (
	"fmt"
	"strings"

	"github.com/pithecene-io/warroom/types"
)

// renderAgentDetail renders the selected agent as label/value rows.
func renderAgentDetail(a types.AgentRecord) string {
	rows := [][]string{
		{"Agent", a.Name},
		{"Domain", a.Domain},
		{"Status", string(a.Status)},
	}
	if a.InRoom() {
		rows = append(rows, []string{"War room", *a.ActiveRoomID})
	}
	if a.LastChangedAt != nil {
		rows = append(rows, []string{"Changed", a.LastChangedAt.Local().Format("2006-01-02 15:04:05")})
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		value := ValueStyle.Render(row[1])
		if row[0] == "Status" {
			value = AgentStatusStyle(a.Status).Render(row[1])
		}
		b.WriteString(fmt.Sprintf("%s %s", LabelStyle.Render(row[0]+":"), value))
	}
	return BoxStyle.Render(b.String())
}
