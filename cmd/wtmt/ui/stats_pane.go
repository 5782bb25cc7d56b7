package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"wtmt/internal/stats"
)

// StatsPaneModel plots one sampler metric as a bar chart.
type StatsPaneModel struct {
	styles  Styles
	sampler *stats.Sampler
	metric  stats.Metric
	width   int
	height  int
	chart   *CachedRender // shared by copies so View can cache
}

// NewStatsPaneModel creates a statistics pane over sampler.
func NewStatsPaneModel(sampler *stats.Sampler, metric stats.Metric, styles Styles) StatsPaneModel {
	return StatsPaneModel{
		styles:  styles,
		sampler: sampler,
		metric:  metric,
		width:   60,
		height:  12,
		chart:   &CachedRender{},
	}
}

// SetSize sets the outer size of the pane.
func (m *StatsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Metric is the plotted metric.
func (m StatsPaneModel) Metric() stats.Metric { return m.metric }

// SetMetric switches the plotted metric.
func (m *StatsPaneModel) SetMetric(metric stats.Metric) {
	m.metric = metric
}

// Renders reports how many times the chart has been drawn.
func (m StatsPaneModel) Renders() int { return m.chart.Renders() }

// FormatValue renders a sample value for display.
func FormatValue(metric stats.Metric, v float64) string {
	if metric == stats.MetricBytes {
		return humanize.Bytes(uint64(math.Max(v, 0)))
	}
	if v >= 10000 {
		return strings.ReplaceAll(humanize.SIWithDigits(v, 1, ""), " ", "")
	}
	return humanize.Comma(int64(v))
}

// View renders the pane. The chart is redrawn only when a new sample arrived,
// the metric changed or the pane was resized.
func (m StatsPaneModel) View() string {
	contentW := PanelContentWidth(m.width)
	contentH := PanelContentHeight(m.height)
	series := m.sampler.Series(m.metric)

	body := m.chart.Render(
		[]interface{}{m.metric.String(), series.LastAt(), series.Len(), contentW, contentH},
		func() string { return m.renderChart(series, contentW, contentH) },
	)
	return m.styles.Panel.Width(m.width - PanelBorderWidth*2).Render(body)
}

func (m StatsPaneModel) renderChart(series *stats.Series, w, h int) string {
	latest := "-"
	if s, ok := series.Latest(); ok {
		latest = FormatValue(m.metric, s.Value)
	}
	max := series.Max()
	title := m.styles.Title.Render(m.metric.Title()) +
		m.styles.Muted.Render(fmt.Sprintf("  last %s  max %s", latest, FormatValue(m.metric, max)))

	chartH := h - 1
	if chartH < MinChartHeight {
		chartH = MinChartHeight
	}
	chartW := w - ChartAxisWidth
	if chartW < 1 {
		chartW = 1
	}

	bars := strings.Split(RenderBars(series.Values(), max, chartW, chartH), "\n")
	axis := make([]string, chartH)
	axis[0] = FormatValue(m.metric, ChartScale(max))
	axis[chartH-1] = "0"
	for i := range bars {
		label := lipgloss.NewStyle().Width(ChartAxisWidth - 1).Align(lipgloss.Right).Render(axis[i])
		bars[i] = m.styles.Muted.Render(label+"┤") + m.styles.Chart.Render(bars[i])
	}
	return title + "\n" + strings.Join(bars, "\n")
}
