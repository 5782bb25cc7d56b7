package stats

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMetric is returned for metric names the sampler does not track.
var ErrUnknownMetric = errors.New("unknown metric")

// Metric selects what the statistics pane plots.
type Metric int

const (
	// MetricOps is items completed (inserted, updated, deleted, dropped) per interval.
	MetricOps Metric = iota
	// MetricEntries is the cached row count summed over all tables.
	MetricEntries
	// MetricBytes is encoded bytes stored per interval.
	MetricBytes
	// MetricErrors is failed engine calls per interval.
	MetricErrors
)

var metricNames = []string{"ops", "entries", "bytes", "errors"}

func (m Metric) String() string {
	if m >= 0 && int(m) < len(metricNames) {
		return metricNames[m]
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// Title is the chart caption.
func (m Metric) Title() string {
	switch m {
	case MetricOps:
		return "operations / interval"
	case MetricEntries:
		return "table entries"
	case MetricBytes:
		return "bytes stored / interval"
	case MetricErrors:
		return "errors / interval"
	default:
		return m.String()
	}
}

// Metrics lists every metric in display order.
func Metrics() []Metric {
	return []Metric{MetricOps, MetricEntries, MetricBytes, MetricErrors}
}

// ParseMetric resolves a metric by name, case-insensitively.
func ParseMetric(name string) (Metric, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range metricNames {
		if n == name {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownMetric, name, strings.Join(metricNames, ", "))
}
