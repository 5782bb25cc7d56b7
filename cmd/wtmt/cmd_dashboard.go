package main

import (
	"context"

	"github.com/spf13/cobra"

	"wtmt/cmd/wtmt/dash"
	"wtmt/internal/config"
	"wtmt/internal/logging"
)

// runDashboard opens the interactive dashboard and reloads the config file
// while it runs.
func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := bootHarness(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	reloads := make(chan *config.Config)
	go func() {
		err := config.Watch(ctx, configPath, func(c *config.Config) {
			select {
			case reloads <- c:
			case <-ctx.Done():
			}
		})
		if err != nil {
			logging.BootError("config watch disabled: %v", err)
		}
	}()

	return dash.Run(h, reloads)
}
