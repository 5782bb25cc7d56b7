package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"wtmt/internal/stats"
	"wtmt/internal/workload"
)

type staticSource struct{ r stats.Reading }

func (s *staticSource) Read() stats.Reading { return s.r }

func TestStatsPane_CachesUntilNewSample(t *testing.T) {
	src := &staticSource{}
	sampler := stats.NewSampler(src, 50)
	pane := NewStatsPaneModel(sampler, stats.MetricOps, DefaultStyles())
	pane.SetSize(60, 12)

	t0 := time.Unix(100, 0)
	src.r.Ops = 40
	sampler.Sample(t0)

	first := pane.View()
	pane.View()
	if pane.Renders() != 1 {
		t.Fatalf("expected 1 chart render, got %d", pane.Renders())
	}
	if !strings.Contains(first, "operations / interval") {
		t.Errorf("missing metric title in %q", first)
	}

	// Same timestamp: ignored by the series, chart not redrawn.
	src.r.Ops = 90
	sampler.Sample(t0)
	pane.View()
	if pane.Renders() != 1 {
		t.Fatalf("duplicate timestamp caused a redraw")
	}

	sampler.Sample(t0.Add(500 * time.Millisecond))
	pane.View()
	if pane.Renders() != 2 {
		t.Fatalf("new sample did not redraw, renders=%d", pane.Renders())
	}

	pane.SetSize(80, 12)
	pane.View()
	if pane.Renders() != 3 {
		t.Fatalf("resize did not redraw, renders=%d", pane.Renders())
	}

	pane.SetMetric(stats.MetricEntries)
	if !strings.Contains(pane.View(), "table entries") {
		t.Error("metric switch not rendered")
	}
}

func TestFormatValue(t *testing.T) {
	if got := FormatValue(stats.MetricBytes, 2048); got != "2.0 kB" {
		t.Errorf("bytes = %q", got)
	}
	if got := FormatValue(stats.MetricOps, 1234); got != "1,234" {
		t.Errorf("ops = %q", got)
	}
	if got := FormatValue(stats.MetricOps, 25000); got != "25k" {
		t.Errorf("large ops = %q", got)
	}
}

func snap(id string, status workload.Status, done, total int64) workload.Snapshot {
	return workload.Snapshot{ID: id, Command: "insert 10 foo", Status: status, Completed: done, Total: total}
}

func TestOpsPane_UpsertOrderingAndClear(t *testing.T) {
	pane := NewOpsPaneModel(DefaultStyles(), true)
	pane.SetSize(100, 10)

	pane.Upsert(snap("aaaaaaaa-1", workload.StatusInProgress, 5, 10))
	pane.Upsert(snap("bbbbbbbb-2", workload.StatusPending, 0, 10))
	pane.Upsert(snap("aaaaaaaa-1", workload.StatusDone, 10, 10))
	// Stale message after the terminal one is dropped.
	pane.Upsert(snap("aaaaaaaa-1", workload.StatusInProgress, 7, 10))

	got := pane.Snapshots()
	if len(got) != 2 || got[0].ID != "aaaaaaaa-1" || got[1].ID != "bbbbbbbb-2" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Status != workload.StatusDone || got[0].Completed != 10 {
		t.Fatalf("terminal snapshot overwritten: %+v", got[0])
	}
	if pane.Active() != 1 {
		t.Fatalf("Active = %d, want 1", pane.Active())
	}

	view := pane.View()
	if !strings.Contains(view, "aaaaaaaa") || !strings.Contains(view, "done") {
		t.Errorf("view missing row: %q", view)
	}

	if n := pane.Clear(); n != 1 {
		t.Fatalf("Clear removed %d, want 1", n)
	}
	if len(pane.Snapshots()) != 1 {
		t.Fatal("finished operation not cleared")
	}
}

func TestOpsPane_ShowsErrors(t *testing.T) {
	pane := NewOpsPaneModel(DefaultStyles(), true)
	pane.SetSize(100, 10)
	s := snap("cccccccc-3", workload.StatusFailed, 0, 10)
	s.Err = errors.New("table is empty")
	pane.Upsert(s)
	if !strings.Contains(pane.View(), "table is empty") {
		t.Error("failure reason not shown")
	}
}

func TestOpsPane_HidesFinished(t *testing.T) {
	pane := NewOpsPaneModel(DefaultStyles(), false)
	pane.SetSize(100, 10)
	pane.Upsert(snap("dddddddd-4", workload.StatusDone, 10, 10))
	if strings.Contains(pane.View(), "dddddddd") {
		t.Error("finished operation shown with show_finished=false")
	}
}

func TestSimpleTable(t *testing.T) {
	table := NewSimpleTable("Tables", []string{"Name", "Entries"})
	table.AddRow("test-a", "1,000")
	view := table.View(DefaultStyles())
	for _, want := range []string{"Tables", "Name", "test-a", "1,000"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestHelp(t *testing.T) {
	md := HelpMarkdown()
	for _, want := range []string{"insert <count> <table>", "cancel <op-id>", "bytes"} {
		if !strings.Contains(md, want) {
			t.Errorf("help missing %q", want)
		}
	}
	if out := RenderHelp(LightTheme(), 60); !strings.Contains(out, "insert") {
		t.Error("rendered help lost content")
	}
}

func TestLayout(t *testing.T) {
	l := NewLayoutConfig(10, 10)
	if l.TerminalWidth != MinimumTerminalWidth || l.TerminalHeight != MinimumTerminalHeight {
		t.Fatalf("minimums not applied: %+v", l)
	}
	l = NewLayoutConfig(120, 40)
	if got := l.OpsPaneHeight() + l.StatsPaneHeight(); got != 40-HeaderHeight-FooterHeight-InputHeight {
		t.Fatalf("panes do not fill body: %d", got)
	}
}

func TestThemeByName(t *testing.T) {
	if !ThemeByName("dark").IsDark || ThemeByName("light").IsDark {
		t.Fatal("explicit theme names not honored")
	}
}
