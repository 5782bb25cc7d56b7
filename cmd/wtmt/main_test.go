package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"wtmt/internal/command"
	"wtmt/internal/config"
	"wtmt/internal/workload"
)

// setupCLI points the global flags at a fresh data directory.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Engine.Driver = "sqlite"
	cfg.Workload.BatchSize = 4
	configPath = filepath.Join(dir, "config.yaml")

	t.Cleanup(func() {
		execFile, execSequential = "", false
		configForce, verifyLimit = false, 0
		dbPath, driverName = "", ""
	})
	return dir
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	return cmd, &buf
}

func TestReadScript(t *testing.T) {
	script := `
# seed
insert 100 a

  update 10 a
#delete 5 a
drop a
`
	lines, err := readScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("readScript returned error: %v", err)
	}
	want := []string{"insert 100 a", "update 10 a", "drop a"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, lines)
	}
}

func TestExecLinesAppendsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.txt")
	if err := os.WriteFile(path, []byte("insert 1 b\n# x\ndelete 1 b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	lines, err := execLines([]string{"insert 2 a"}, path)
	if err != nil {
		t.Fatalf("execLines returned error: %v", err)
	}
	if len(lines) != 3 || lines[0] != "insert 2 a" || lines[2] != "delete 1 b" {
		t.Fatalf("unexpected lines: %q", lines)
	}

	if _, err := execLines(nil, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing script")
	}
}

func TestRunExecSequential(t *testing.T) {
	setupCLI(t)
	execSequential = true

	cmd, out := newTestCmd()
	err := runExec(cmd, []string{"insert 20 t1", "update 5 t1", "delete 3 t1"})
	if err != nil {
		t.Fatalf("runExec returned error: %v", err)
	}
	summary := out.String()
	for _, want := range []string{"insert 20 t1", "update 5 t1", "delete 3 t1", "done", "17 entries"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}

	// The data survives the harness.
	cmd, out = newTestCmd()
	if err := runTables(cmd, nil); err != nil {
		t.Fatalf("runTables returned error: %v", err)
	}
	if !strings.Contains(out.String(), "t1") || !strings.Contains(out.String(), "17") {
		t.Fatalf("unexpected tables output:\n%s", out.String())
	}

	cmd, out = newTestCmd()
	if err := runVerify(cmd, []string{"table:t1"}); err != nil {
		t.Fatalf("runVerify returned error: %v", err)
	}
	if !strings.Contains(out.String(), "17 rows checked, 0 corrupt") {
		t.Fatalf("unexpected verify output: %s", out.String())
	}
}

func TestRunExecConcurrent(t *testing.T) {
	setupCLI(t)
	cfg.Workload.Workers = 2
	cfg.Workload.QueueDepth = 1
	cfg.Workload.BatchSize = 10
	cfg.Stats.Interval = "1ms"

	lines := []string{
		"insert 300 a", "insert 300 b", "insert 300 c",
		"insert 200 a", "insert 200 b", "insert 200 c",
	}
	cmd, out := newTestCmd()
	if err := runExec(cmd, lines); err != nil {
		t.Fatalf("runExec returned error: %v", err)
	}
	summary := out.String()
	for _, line := range lines {
		if !strings.Contains(summary, line) {
			t.Errorf("summary missing %q:\n%s", line, summary)
		}
	}
	if n := strings.Count(summary, "done"); n != len(lines) {
		t.Errorf("expected %d done operations, got %d:\n%s", len(lines), n, summary)
	}
	if !strings.Contains(summary, "3 tables, 1,500 entries") {
		t.Errorf("unexpected totals:\n%s", summary)
	}
}

func TestExecRunRetriesWhenQueueFull(t *testing.T) {
	setupCLI(t)
	cfg.Workload.Workers = 1
	cfg.Workload.QueueDepth = 1
	cfg.Workload.BatchSize = 10
	cfg.Stats.Interval = "1ms"

	core, logs := observer.New(zap.DebugLevel)
	logger = zap.New(core)

	h, err := bootHarness(context.Background())
	if err != nil {
		t.Fatalf("bootHarness returned error: %v", err)
	}
	defer h.Close()

	var cmds []command.Command
	for i := 0; i < 6; i++ {
		c, err := command.Parse(fmt.Sprintf("insert 500 t%d", i))
		if err != nil {
			t.Fatal(err)
		}
		cmds = append(cmds, c)
	}

	var out bytes.Buffer
	run := newExecRun(h, &out, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Sampler.Run(ctx, h.Config.GetStatsInterval(), run.logThroughput)
	}()
	err = run.execute(context.Background(), cmds)
	cancel()
	<-done
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	if len(run.order) != len(cmds) || len(run.final) != len(cmds) {
		t.Fatalf("expected %d finished operations, got order=%d final=%d", len(cmds), len(run.order), len(run.final))
	}
	for _, id := range run.order {
		if s := run.final[id]; s.Status != workload.StatusDone || s.Completed != 500 {
			t.Errorf("operation %s: status %s, completed %d", s.Command, s.Status, s.Completed)
		}
	}
	if n := run.inFlight.Load(); n != 0 {
		t.Errorf("expected no operations in flight, got %d", n)
	}
	if logs.FilterMessage("queue full, waiting").Len() == 0 {
		t.Error("expected submissions to wait on a full queue")
	}
	if h.Registry.TotalEntries() != 3000 {
		t.Errorf("expected 3000 entries, got %d", h.Registry.TotalEntries())
	}
}

func TestRunExecReportsFailedOperations(t *testing.T) {
	setupCLI(t)
	execSequential = true

	cmd, out := newTestCmd()
	// The delete empties the table, so the update has nothing to rewrite.
	err := runExec(cmd, []string{"insert 2 a", "delete 5 a", "update 1 a"})
	if err == nil {
		t.Fatal("expected error for failed update")
	}
	if !strings.Contains(err.Error(), "1 of 3 operations failed") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "failed") {
		t.Fatalf("summary should show the failure:\n%s", out.String())
	}
}

func TestRunExecRejectsBadScript(t *testing.T) {
	setupCLI(t)

	cmd, _ := newTestCmd()
	err := runExec(cmd, []string{"insert 1 a", "insert lots a"})
	if err == nil || !strings.Contains(err.Error(), "command 2") {
		t.Fatalf("expected parse error for command 2, got %v", err)
	}

	if err := runExec(cmd, nil); err == nil {
		t.Fatal("expected error with no commands")
	}

	err = runExec(cmd, []string{"update 1 ghost"})
	if err == nil || !strings.Contains(err.Error(), "no such table") {
		t.Fatalf("expected no such table error, got %v", err)
	}
}

func TestRunExecStopsAtQuit(t *testing.T) {
	setupCLI(t)

	cmd, out := newTestCmd()
	if err := runExec(cmd, []string{"insert 3 a", "quit", "insert 3 b"}); err != nil {
		t.Fatalf("runExec returned error: %v", err)
	}
	if strings.Contains(out.String(), "insert 3 b") {
		t.Fatalf("commands after quit should not run:\n%s", out.String())
	}
}

func TestRunVerifyMissingTable(t *testing.T) {
	setupCLI(t)
	cmd, _ := newTestCmd()
	if err := runVerify(cmd, []string{"nope"}); err == nil {
		t.Fatal("expected error verifying a missing table")
	}
}

func TestRunTablesEmpty(t *testing.T) {
	setupCLI(t)
	cmd, out := newTestCmd()
	if err := runTables(cmd, nil); err != nil {
		t.Fatalf("runTables returned error: %v", err)
	}
	if !strings.Contains(out.String(), "No tables.") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunConfigInit(t *testing.T) {
	setupCLI(t)
	driverName = "sqlite3"

	cmd, out := newTestCmd()
	if err := runConfigInit(cmd, nil); err != nil {
		t.Fatalf("runConfigInit returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Wrote") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Engine.Driver != "sqlite3" {
		t.Fatalf("expected driver override to be saved, got %q", loaded.Engine.Driver)
	}

	if err := runConfigInit(cmd, nil); err == nil {
		t.Fatal("expected error when config exists")
	}
	configForce = true
	if err := runConfigInit(cmd, nil); err != nil {
		t.Fatalf("runConfigInit --force returned error: %v", err)
	}
}

func TestRunEngines(t *testing.T) {
	setupCLI(t)
	cmd, out := newTestCmd()
	if err := runEngines(cmd, nil); err != nil {
		t.Fatalf("runEngines returned error: %v", err)
	}
	if !strings.Contains(out.String(), "* sqlite ") || !strings.Contains(out.String(), "modernc.org/sqlite") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	setupCLI(t)
	dbPath = "other.db"
	driverName = "sqlite3"

	c, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if c.Engine.Path != "other.db" || c.Engine.Driver != "sqlite3" {
		t.Fatalf("flags not applied: %+v", c.Engine)
	}
}
