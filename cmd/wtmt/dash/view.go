package dash

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	cfg := m.harness.Config
	header := m.styles.Header.Width(m.width).Render(fmt.Sprintf(
		"wtmt  %s · %s · %d workers · %d tables · %s entries",
		cfg.Engine.Driver, cfg.Engine.Compression, cfg.Workload.Workers,
		len(m.harness.Registry.Tables()), humanize.Comma(m.harness.Registry.TotalEntries()),
	))

	var body string
	if m.showOverlay {
		body = m.overlay.View()
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, m.ops.View(), m.stats.View())
	}

	input := m.styles.Panel.Width(m.width - 2).Render(m.input.View())

	footer := m.footer()
	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, footer)
}

func (m Model) footer() string {
	prefix := ""
	if m.ops.Active() > 0 {
		prefix = m.spinner.View() + " "
	}
	switch {
	case m.status == "":
		return m.styles.Footer.Render(prefix + "type help for commands · ctrl+c to quit")
	case m.statusErr:
		return prefix + m.styles.Error.Render(m.status)
	default:
		return m.styles.Footer.Render(prefix + m.status)
	}
}
