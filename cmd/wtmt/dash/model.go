// Package dash is the interactive dashboard: a command pane, the list of
// operations with their progress, and the live statistics chart.
package dash

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"wtmt/cmd/wtmt/ui"
	"wtmt/internal/config"
	"wtmt/internal/engine"
	"wtmt/internal/logging"
	"wtmt/internal/stats"
	"wtmt/internal/system"
	"wtmt/internal/workload"
)

// Messages for tea updates
type (
	progressMsg       workload.Snapshot
	progressClosedMsg struct{}
	tickMsg           time.Time
	configMsg         *config.Config
	tablesMsg         struct {
		infos []engine.TableInfo
		err   error
	}
)

// Model is the root dashboard model.
type Model struct {
	harness  *system.Harness
	reloads  <-chan *config.Config
	interval time.Duration

	styles  ui.Styles
	input   textinput.Model
	spinner spinner.Model
	ops     ui.OpsPaneModel
	stats   ui.StatsPaneModel
	overlay viewport.Model

	// Input buffer: history of committed lines, newest last.
	history     []string
	historySize int
	historyIdx  int
	lastCommand string

	showOverlay bool
	status      string
	statusErr   bool
	width       int
	height      int
	quitting    bool
}

// New builds the dashboard over a booted harness. reloads may be nil; when
// set, each config received on it is applied while the dashboard runs.
func New(h *system.Harness, reloads <-chan *config.Config) Model {
	cfg := h.Config
	styles := ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))

	ti := textinput.New()
	ti.Placeholder = "insert 1000 test-a   (help for commands)"
	ti.Focus()
	ti.Prompt = "› "
	ti.CharLimit = 256
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	metric, err := stats.ParseMetric(cfg.Stats.Metric)
	if err != nil {
		metric = stats.MetricOps
	}

	m := Model{
		harness:     h,
		reloads:     reloads,
		interval:    cfg.GetStatsInterval(),
		styles:      styles,
		input:       ti,
		spinner:     sp,
		ops:         ui.NewOpsPaneModel(styles, cfg.UI.ShowFinished),
		stats:       ui.NewStatsPaneModel(h.Sampler, metric, styles),
		overlay:     viewport.New(80, 20),
		historySize: cfg.UI.HistorySize,
		width:       100,
		height:      30,
	}
	for _, s := range h.Executor.Operations() {
		m.ops.Upsert(s)
	}
	m.resize(m.width, m.height)
	return m
}

// Init starts the blink, progress, sampling and spinner loops.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		waitForProgress(m.harness.Executor.Progress()),
		tick(m.interval),
		m.spinner.Tick,
	}
	if m.reloads != nil {
		cmds = append(cmds, waitForConfig(m.reloads))
	}
	return tea.Batch(cmds...)
}

// waitForProgress delivers the next progress message.
func waitForProgress(ch <-chan workload.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return progressMsg(s)
	}
}

func waitForConfig(ch <-chan *config.Config) tea.Cmd {
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok {
			return nil
		}
		return configMsg(cfg)
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) resize(w, h int) {
	layout := ui.NewLayoutConfig(w, h)
	m.width, m.height = layout.TerminalWidth, layout.TerminalHeight
	m.input.Width = m.width - 6
	m.ops.SetSize(m.width, layout.OpsPaneHeight())
	m.stats.SetSize(m.width, layout.StatsPaneHeight())
	m.overlay.Width = m.width
	m.overlay.Height = layout.OpsPaneHeight() + layout.StatsPaneHeight()
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.status = msg
	m.statusErr = isErr
	if isErr {
		logging.UIDebug("status error: %s", msg)
	}
}

// Quitting reports whether the user asked to leave.
func (m Model) Quitting() bool { return m.quitting }
