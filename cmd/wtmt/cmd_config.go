package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wtmt/internal/config"
	"wtmt/internal/engine"
)

var configForce bool

// configCmd groups configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the wtmt config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

// enginesCmd lists the compiled-in drivers
var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the storage engine drivers compiled into this binary",
	Args:  cobra.NoArgs,
	RunE:  runEngines,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
	}
	c := config.DefaultConfig()
	if dbPath != "" {
		c.Engine.Path = dbPath
	}
	if driverName != "" {
		c.Engine.Driver = driverName
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}

func runEngines(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, d := range engine.Drivers() {
		marker := " "
		if cfg != nil && d == cfg.Engine.Driver {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-8s %s\n", marker, d, engine.DriverDescription(d))
	}
	return nil
}
