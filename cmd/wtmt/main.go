package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"wtmt/internal/config"
	"wtmt/internal/logging"
	"wtmt/internal/system"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string
	driverName string

	// Loaded by PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wtmt",
	Short: "wtmt - multi-threaded workload harness for an embedded storage engine",
	Long: `wtmt drives insert, update, delete and drop workloads against SQLite tables
from a pool of worker goroutines and plots the engine's statistics live.

Run without arguments to open the interactive dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		// The dashboard owns the terminal; it logs to files only.
		if cmd == cmd.Root() {
			logger = zap.NewNop()
			return nil
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runDashboard,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".wtmt/config.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file (overrides engine.path)")
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", "", "Engine driver: sqlite or sqlite3 (overrides engine.driver)")

	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "Read commands from a script, one per line")
	execCmd.Flags().BoolVar(&execSequential, "sequential", false, "Wait for each operation before submitting the next")
	verifyCmd.Flags().IntVar(&verifyLimit, "limit", 0, "Check at most this many rows (0 checks all)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(enginesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the command-line overrides.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		c.Engine.Path = dbPath
	}
	if driverName != "" {
		c.Engine.Driver = driverName
	}
	return c, nil
}

// bootHarness starts file logging and the workload stack.
func bootHarness(ctx context.Context) (*system.Harness, error) {
	if err := logging.Initialize(cfg.DataDir, cfg.Logging.Settings()); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	h, err := system.Boot(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("harness booted",
		zap.String("driver", cfg.Engine.Driver),
		zap.String("db", cfg.DatabasePath()),
		zap.Int("tables", len(h.Registry.Tables())))
	return h, nil
}
