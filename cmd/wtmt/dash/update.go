package dash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"wtmt/cmd/wtmt/ui"
	"wtmt/internal/command"
	"wtmt/internal/config"
	"wtmt/internal/engine"
	"wtmt/internal/executor"
	"wtmt/internal/logging"
	"wtmt/internal/stats"
	"wtmt/internal/workload"
)

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEsc:
			if m.showOverlay {
				m.showOverlay = false
				return m, nil
			}
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			m.remember(line)
			return m.execute(line)
		case tea.KeyUp:
			m.recall(-1)
			return m, nil
		case tea.KeyDown:
			m.recall(1)
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			if m.showOverlay {
				m.overlay, cmd = m.overlay.Update(msg)
			} else {
				m.ops, cmd = m.ops.Update(msg)
			}
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case progressMsg:
		m.ops.Upsert(workload.Snapshot(msg))
		cmds = append(cmds, waitForProgress(m.harness.Executor.Progress()))

	case progressClosedMsg:
		logging.UIDebug("progress channel closed")

	case tickMsg:
		m.harness.Sampler.Sample(time.Time(msg))
		cmds = append(cmds, tick(m.interval))

	case configMsg:
		if msg != nil {
			m.applyConfig(msg)
			cmds = append(cmds, waitForConfig(m.reloads))
		}

	case tablesMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			break
		}
		table := ui.NewSimpleTable("Tables", []string{"Table", "Entries", "Max key"})
		for _, info := range msg.infos {
			table.AddRow(info.Name, fmt.Sprint(info.Entries), fmt.Sprint(info.MaxKey))
		}
		m.overlay.SetContent(table.View(m.styles))
		m.overlay.GotoTop()
		m.showOverlay = true
		m.setStatus(fmt.Sprintf("%d tables (Esc to close)", len(msg.infos)), false)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// remember appends a committed line to the bounded history.
func (m *Model) remember(line string) {
	m.lastCommand = line
	if n := len(m.history); n == 0 || m.history[n-1] != line {
		m.history = append(m.history, line)
	}
	if m.historySize > 0 && len(m.history) > m.historySize {
		m.history = m.history[len(m.history)-m.historySize:]
	}
	m.historyIdx = len(m.history)
}

// recall walks the history; dir is -1 for older, +1 for newer.
func (m *Model) recall(dir int) {
	if len(m.history) == 0 {
		return
	}
	m.historyIdx += dir
	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
	if m.historyIdx >= len(m.history) {
		m.historyIdx = len(m.history)
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.history[m.historyIdx])
	m.input.CursorEnd()
}

// execute runs one command line.
func (m Model) execute(line string) (tea.Model, tea.Cmd) {
	cmd, err := command.Parse(line)
	if err != nil {
		logging.CommandWarn("rejected %q: %v", line, err)
		m.setStatus(err.Error(), true)
		return m, nil
	}
	logging.Command("command: %s", line)

	if cmd.IsOperation() {
		return m.submit(cmd)
	}

	switch cmd.Verb {
	case command.VerbHelp:
		m.overlay.SetContent(ui.RenderHelp(m.styles.Theme, m.width-4))
		m.overlay.GotoTop()
		m.showOverlay = true
		m.setStatus("help (Esc to close)", false)

	case command.VerbClear:
		n := m.ops.Clear()
		m.harness.Executor.Prune()
		m.setStatus(fmt.Sprintf("cleared %d finished operations", n), false)

	case command.VerbCancel:
		snap, err := m.harness.Executor.Cancel(cmd.Arg)
		if err != nil {
			m.setStatus(err.Error(), true)
			break
		}
		m.ops.Upsert(snap)
		m.setStatus(fmt.Sprintf("cancel requested: %s [%s]", snap.Command, snap.ShortID()), false)

	case command.VerbStat:
		metric, err := stats.ParseMetric(cmd.Arg)
		if err != nil {
			m.setStatus(err.Error(), true)
			break
		}
		m.stats.SetMetric(metric)
		m.setStatus("plotting "+metric.Title(), false)

	case command.VerbTables:
		return m, listTables(m.harness.Engine)

	case command.VerbQuit:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// submit resolves and enqueues a workload operation.
func (m Model) submit(cmd command.Command) (tea.Model, tea.Cmd) {
	op, err := command.Resolve(cmd, m.harness.Registry)
	if err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	snap, err := m.harness.Executor.Submit(op)
	switch {
	case errors.Is(err, executor.ErrQueueFull):
		m.setStatus(fmt.Sprintf("busy: %v, try again shortly", err), true)
		return m, nil
	case err != nil:
		m.setStatus(err.Error(), true)
		return m, nil
	}
	m.ops.Upsert(snap)
	m.setStatus(fmt.Sprintf("queued %s [%s]", op, op.ShortID()), false)
	return m, nil
}

// listTables reads the engine's tables off the event loop.
func listTables(eng engine.Engine) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		infos, err := eng.Tables(ctx)
		return tablesMsg{infos: infos, err: err}
	}
}

// applyConfig applies the settings that can change while running.
func (m *Model) applyConfig(cfg *config.Config) {
	if err := logging.Reconfigure(cfg.Logging.Settings()); err != nil {
		m.setStatus(fmt.Sprintf("config reload: %v", err), true)
		return
	}
	m.historySize = cfg.UI.HistorySize
	logging.UI("config reloaded: level=%s debug=%v history=%d", cfg.Logging.Level, cfg.Logging.DebugMode, cfg.UI.HistorySize)
	m.setStatus("config reloaded", false)
}
