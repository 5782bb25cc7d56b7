package dash

import (
	tea "github.com/charmbracelet/bubbletea"

	"wtmt/internal/config"
	"wtmt/internal/logging"
	"wtmt/internal/system"
)

// Run opens the dashboard full-screen and blocks until the user quits.
func Run(h *system.Harness, reloads <-chan *config.Config) error {
	logging.UI("dashboard starting: driver=%s db=%s", h.Config.Engine.Driver, h.Config.DatabasePath())
	p := tea.NewProgram(
		New(h, reloads),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	logging.UI("dashboard closed: %v", err)
	return err
}
