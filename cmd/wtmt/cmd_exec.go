package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wtmt/cmd/wtmt/ui"
	"wtmt/internal/command"
	"wtmt/internal/executor"
	"wtmt/internal/stats"
	"wtmt/internal/system"
	"wtmt/internal/workload"
)

var (
	execFile       string
	execSequential bool
)

// execCmd runs a workload script without the dashboard
var execCmd = &cobra.Command{
	Use:   "exec [command...]",
	Short: "Run workload commands headless",
	Long: `Runs dashboard commands without the interactive interface. Each argument is
one command; with --file, commands are read one per line and lines starting
with # are ignored. Progress and throughput are logged, and a summary table is
printed when every operation has finished.

Examples:
  wtmt exec "insert 10000 test-a" "update 5000 test-a"
  wtmt exec --file workload.txt --sequential`,
	RunE: runExec,
}

// readScript returns the non-empty, non-comment lines of r.
func readScript(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return lines, nil
}

// execLines collects commands from the arguments and the script file.
func execLines(args []string, file string) ([]string, error) {
	lines := append([]string(nil), args...)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		more, err := readScript(f)
		if err != nil {
			return nil, err
		}
		lines = append(lines, more...)
	}
	return lines, nil
}

func runExec(cmd *cobra.Command, args []string) error {
	lines, err := execLines(args, execFile)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("no commands given")
	}

	// Reject a bad script before anything runs.
	cmds := make([]command.Command, 0, len(lines))
	for i, line := range lines {
		c, err := command.Parse(line)
		if err != nil {
			return fmt.Errorf("command %d: %w", i+1, err)
		}
		cmds = append(cmds, c)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	h, err := bootHarness(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	run := newExecRun(h, cmd.OutOrStdout(), execSequential)

	samplerCtx, stopSampler := context.WithCancel(ctx)
	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		h.Sampler.Run(samplerCtx, h.Config.GetStatsInterval(), run.logThroughput)
	}()

	runErr := run.execute(ctx, cmds)
	stopSampler()
	<-samplerDone

	if runErr != nil {
		return runErr
	}
	run.printSummary()
	if failed := run.failed(); failed > 0 {
		return fmt.Errorf("%d of %d operations failed", failed, len(run.order))
	}
	return nil
}

// execRun submits commands to the executor and follows their progress. Only
// the goroutine calling execute touches the maps; inFlight mirrors
// len(pending) for the throughput logger.
type execRun struct {
	h          *system.Harness
	out        io.Writer
	sequential bool

	order    []string
	pending  map[string]bool
	final    map[string]workload.Snapshot
	inFlight atomic.Int64
}

func newExecRun(h *system.Harness, out io.Writer, sequential bool) *execRun {
	return &execRun{
		h:          h,
		out:        out,
		sequential: sequential,
		pending:    make(map[string]bool),
		final:      make(map[string]workload.Snapshot),
	}
}

// execute runs cmds in order and waits for every submitted operation.
func (r *execRun) execute(ctx context.Context, cmds []command.Command) error {
	for _, c := range cmds {
		if c.Verb == command.VerbQuit {
			break
		}
		if err := r.dispatch(ctx, c); err != nil {
			return err
		}
		if r.sequential {
			if err := r.drain(ctx); err != nil {
				return err
			}
		}
	}
	return r.drain(ctx)
}

func (r *execRun) dispatch(ctx context.Context, c command.Command) error {
	if c.IsOperation() {
		// Later commands may name a table an earlier insert is still creating.
		op, err := command.Resolve(c, r.h.Registry)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Verb, err)
		}
		return r.submit(ctx, op)
	}

	switch c.Verb {
	case command.VerbHelp:
		for _, u := range command.Usage {
			fmt.Fprintln(r.out, u)
		}
	case command.VerbClear:
		logger.Debug("pruned operations", zap.Int("count", r.h.Executor.Prune()))
	case command.VerbCancel:
		snap, err := r.h.Executor.Cancel(c.Arg)
		if err != nil {
			return fmt.Errorf("cancel %s: %w", c.Arg, err)
		}
		r.handle(snap)
	case command.VerbStat:
		metric, err := stats.ParseMetric(c.Arg)
		if err != nil {
			return err
		}
		r.h.Sampler.Sample(time.Now())
		latest, _ := r.h.Sampler.Series(metric).Latest()
		fmt.Fprintf(r.out, "%s: %s\n", metric.Title(), ui.FormatValue(metric, latest.Value))
	case command.VerbTables:
		if err := printTables(ctx, r.out, r.h.Engine); err != nil {
			return err
		}
	}
	return nil
}

// submit enqueues op, draining progress while the queue is full.
func (r *execRun) submit(ctx context.Context, op *workload.Operation) error {
	for {
		snap, err := r.h.Executor.Submit(op)
		if err == nil {
			r.order = append(r.order, snap.ID)
			r.pending[snap.ID] = true
			r.inFlight.Add(1)
			logger.Info("operation queued", zap.String("id", snap.ShortID()), zap.String("command", snap.Command))
			return nil
		}
		if !errors.Is(err, executor.ErrQueueFull) {
			return fmt.Errorf("submit %s: %w", op, err)
		}
		logger.Debug("queue full, waiting", zap.String("command", op.String()))
		if err := r.next(ctx); err != nil {
			return err
		}
	}
}

// drain waits until every submitted operation is terminal.
func (r *execRun) drain(ctx context.Context) error {
	for len(r.pending) > 0 {
		if err := r.next(ctx); err != nil {
			return err
		}
	}
	return nil
}

// next handles one progress message.
func (r *execRun) next(ctx context.Context) error {
	select {
	case s, ok := <-r.h.Executor.Progress():
		if !ok {
			return executor.ErrStopped
		}
		r.handle(s)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
}

func (r *execRun) handle(s workload.Snapshot) {
	if !s.Status.Terminal() {
		logger.Debug("progress",
			zap.String("id", s.ShortID()),
			zap.Int64("completed", s.Completed),
			zap.Int64("total", s.Total))
		return
	}
	if _, seen := r.final[s.ID]; seen {
		return
	}
	r.final[s.ID] = s
	if r.pending[s.ID] {
		delete(r.pending, s.ID)
		r.inFlight.Add(-1)
	}

	fields := []zap.Field{
		zap.String("id", s.ShortID()),
		zap.String("command", s.Command),
		zap.Int64("completed", s.Completed),
		zap.Duration("elapsed", s.Elapsed(time.Now())),
	}
	switch {
	case s.Status == workload.StatusFailed:
		logger.Error("operation failed", append(fields, zap.Error(s.Err))...)
	case s.Short():
		logger.Warn("operation ended short", fields...)
	default:
		logger.Info("operation done", fields...)
	}
}

func (r *execRun) logThroughput(now time.Time) {
	ops, _ := r.h.Sampler.Series(stats.MetricOps).Latest()
	bytes, _ := r.h.Sampler.Series(stats.MetricBytes).Latest()
	errs, _ := r.h.Sampler.Series(stats.MetricErrors).Latest()
	logger.Info("throughput",
		zap.Float64("ops", ops.Value),
		zap.String("bytes", humanize.Bytes(uint64(bytes.Value))),
		zap.Float64("errors", errs.Value),
		zap.Int64("entries", r.h.Registry.TotalEntries()),
		zap.Int64("pending", r.inFlight.Load()))
}

func (r *execRun) failed() int {
	n := 0
	for _, s := range r.final {
		if s.Status == workload.StatusFailed {
			n++
		}
	}
	return n
}

func (r *execRun) printSummary() {
	table := ui.NewSimpleTable("Operations", []string{"ID", "Command", "Status", "Done", "Elapsed", "Error"})
	for _, id := range r.order {
		s := r.final[id]
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		table.AddRow(
			s.ShortID(),
			s.Command,
			s.Status.String(),
			fmt.Sprintf("%s/%s", humanize.Comma(s.Completed), humanize.Comma(s.Total)),
			s.Elapsed(s.Finished).Round(time.Millisecond).String(),
			errText,
		)
	}
	fmt.Fprintln(r.out, table.View(ui.DefaultStyles()))
	fmt.Fprintf(r.out, "%d tables, %s entries\n", len(r.h.Registry.Tables()), humanize.Comma(r.h.Registry.TotalEntries()))
}
