package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wtmt/cmd/wtmt/ui"
	"wtmt/internal/engine"
	"wtmt/internal/system"
	"wtmt/internal/workload"
)

var verifyLimit int

// tablesCmd lists the tables in the database
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables with their entry counts",
	Args:  cobra.NoArgs,
	RunE:  runTables,
}

// verifyCmd checks stored rows against their checksums
var verifyCmd = &cobra.Command{
	Use:   "verify <table>",
	Short: "Verify the checksums of a table's rows",
	Long: `Decompresses every row of the table, checks it against its stored checksum
and compares it with the payload the row's key and version should produce.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runTables(cmd *cobra.Command, args []string) error {
	eng, err := system.OpenEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()
	return printTables(cmd.Context(), cmd.OutOrStdout(), eng)
}

func printTables(ctx context.Context, out io.Writer, eng engine.Engine) error {
	if ctx == nil {
		ctx = context.Background()
	}
	infos, err := eng.Tables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No tables.")
		return nil
	}
	table := ui.NewSimpleTable("Tables", []string{"Table", "Entries", "Max key"})
	var total int64
	for _, info := range infos {
		table.AddRow(info.Name, humanize.Comma(info.Entries), fmt.Sprint(info.MaxKey))
		total += info.Entries
	}
	fmt.Fprintln(out, table.View(ui.DefaultStyles()))
	fmt.Fprintf(out, "%d tables, %s entries\n", len(infos), humanize.Comma(total))
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	name := workload.NormalizeName(args[0])

	eng, err := system.OpenEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Info("verifying table", zap.String("table", name), zap.Int("limit", verifyLimit))
	res, err := eng.Verify(ctx, name, verifyLimit)
	if err != nil {
		return fmt.Errorf("verify %s: %w", name, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s rows checked, %d corrupt\n", name, humanize.Comma(int64(res.Checked)), res.Corrupt)
	if res.Corrupt > 0 {
		return fmt.Errorf("table %s has %d corrupt rows (first bad key %d)", name, res.Corrupt, res.FirstBadKey)
	}
	return nil
}
