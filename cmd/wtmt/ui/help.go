package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"wtmt/internal/command"
	"wtmt/internal/stats"
)

// HelpMarkdown is the dashboard help page source.
func HelpMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# wtmt\n\n")
	sb.WriteString("Type a command and press **Enter**. Operations run in the background; ")
	sb.WriteString("their progress appears in the operations pane.\n\n")
	sb.WriteString("## Commands\n\n")
	for _, u := range command.Usage {
		sb.WriteString(fmt.Sprintf("- `%s`\n", u))
	}
	sb.WriteString("\nTables may be written with or without the `table:` prefix.\n\n")
	sb.WriteString("## Metrics\n\n")
	for _, m := range stats.Metrics() {
		sb.WriteString(fmt.Sprintf("- `%s`: %s\n", m, m.Title()))
	}
	sb.WriteString("\n## Keys\n\n")
	sb.WriteString("- **↑/↓**: command history\n")
	sb.WriteString("- **PgUp/PgDn**: scroll operations\n")
	sb.WriteString("- **Esc**: close help\n")
	sb.WriteString("- **Ctrl+C**: quit\n")
	return sb.String()
}

// NewHelpRenderer builds a markdown renderer matching the theme.
func NewHelpRenderer(theme Theme, width int) (*glamour.TermRenderer, error) {
	if width < 20 {
		width = 20
	}
	style := "light"
	if theme.IsDark {
		style = "dark"
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
}

// RenderHelp renders the help page, falling back to the raw markdown.
func RenderHelp(theme Theme, width int) string {
	md := HelpMarkdown()
	r, err := NewHelpRenderer(theme, width)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
