package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"wtmt/internal/workload"
)

// OpsPaneModel lists submitted operations with a progress bar each.
type OpsPaneModel struct {
	width    int
	height   int
	viewport viewport.Model
	progress progress.Model
	styles   Styles

	order        []string
	ops          map[string]workload.Snapshot
	showFinished bool
	now          func() time.Time
}

// NewOpsPaneModel creates an empty operations pane.
func NewOpsPaneModel(styles Styles, showFinished bool) OpsPaneModel {
	p := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	vp := viewport.New(60, 8)
	return OpsPaneModel{
		width:        60,
		height:       10,
		viewport:     vp,
		progress:     p,
		styles:       styles,
		ops:          make(map[string]workload.Snapshot),
		showFinished: showFinished,
		now:          time.Now,
	}
}

// SetSize sets the outer size of the pane.
func (m *OpsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = PanelContentWidth(w)
	m.viewport.Height = PanelContentHeight(h) - 1 // title line
	m.progress.Width = m.viewport.Width / 4
	m.UpdateContent()
}

// Upsert records the newest snapshot of an operation. Snapshots never move an
// operation backwards: a stale message for a terminal operation is dropped.
func (m *OpsPaneModel) Upsert(s workload.Snapshot) {
	cur, ok := m.ops[s.ID]
	if !ok {
		m.order = append(m.order, s.ID)
	} else if cur.Status.Terminal() || s.Status < cur.Status || s.Completed < cur.Completed {
		return
	}
	m.ops[s.ID] = s
	m.UpdateContent()
}

// Clear removes finished operations and returns how many were removed.
func (m *OpsPaneModel) Clear() int {
	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		if m.ops[id].Status.Terminal() {
			delete(m.ops, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	m.UpdateContent()
	return removed
}

// Snapshots returns the tracked operations in submission order.
func (m OpsPaneModel) Snapshots() []workload.Snapshot {
	out := make([]workload.Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.ops[id])
	}
	return out
}

// Active counts pending and running operations.
func (m OpsPaneModel) Active() int {
	n := 0
	for _, s := range m.ops {
		if !s.Status.Terminal() {
			n++
		}
	}
	return n
}

// Update scrolls the list.
func (m OpsPaneModel) Update(msg tea.Msg) (OpsPaneModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// UpdateContent re-renders the list into the viewport.
func (m *OpsPaneModel) UpdateContent() {
	var lines []string
	for _, id := range m.order {
		s := m.ops[id]
		if !m.showFinished && s.Status.Terminal() {
			continue
		}
		lines = append(lines, m.renderRow(s))
		if s.Err != nil {
			lines = append(lines, "         "+m.styles.Error.Render(s.Err.Error()))
		}
	}
	if len(lines) == 0 {
		m.viewport.SetContent(m.styles.Muted.Render("No operations. Try: insert 1000 test-a"))
		return
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m OpsPaneModel) renderRow(s workload.Snapshot) string {
	status := s.Status.String()
	if s.Short() {
		status = "short"
	}
	counts := fmt.Sprintf("%s/%s", humanize.Comma(s.Completed), humanize.Comma(s.Total))
	elapsed := s.Elapsed(m.now()).Round(10 * time.Millisecond)
	return fmt.Sprintf("%s %-24s %s %5.1f%% %-15s %s %s",
		m.styles.Muted.Render(s.ShortID()),
		s.Command,
		m.progress.ViewAs(s.Fraction()),
		s.Fraction()*100,
		counts,
		m.styles.StatusStyle(s.Status).Render(fmt.Sprintf("%-7s", status)),
		m.styles.Muted.Render(elapsed.String()),
	)
}

// View renders the pane.
func (m OpsPaneModel) View() string {
	title := m.styles.Title.Render("Operations")
	if n := m.Active(); n > 0 {
		title += m.styles.Muted.Render(fmt.Sprintf("  %d active", n))
	}
	return m.styles.Panel.Width(m.width - PanelBorderWidth*2).Render(title + "\n" + m.viewport.View())
}
