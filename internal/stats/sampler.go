package stats

import (
	"context"
	"sync"
	"time"

	"wtmt/internal/engine"
	"wtmt/internal/logging"
	"wtmt/internal/workload"
)

// Reading is a point-in-time view of cumulative counters plus gauges.
type Reading struct {
	Ops     uint64
	Bytes   uint64
	Errors  uint64
	Entries int64
}

// Source produces readings.
type Source interface {
	Read() Reading
}

// EngineSource reads the engine's counters and the registry's cached row counts.
type EngineSource struct {
	Stats    *engine.Statistics
	Registry *workload.Registry
}

// Read implements Source.
func (s EngineSource) Read() Reading {
	snap := s.Stats.Snapshot()
	r := Reading{
		Ops:    snap.Ops(),
		Bytes:  snap.Get(engine.TickerBytesStored),
		Errors: snap.Get(engine.TickerErrors),
	}
	if s.Registry != nil {
		r.Entries = s.Registry.TotalEntries()
	}
	return r
}

// Sampler turns successive readings into per-metric series: counters become
// deltas per interval, gauges are recorded as-is.
type Sampler struct {
	src    Source
	mu     sync.Mutex
	prev   Reading
	series map[Metric]*Series
}

// NewSampler creates a sampler with a window of samples per metric. The
// first Sample reports activity since this call.
func NewSampler(src Source, window int) *Sampler {
	s := &Sampler{src: src, prev: src.Read(), series: make(map[Metric]*Series)}
	for _, m := range Metrics() {
		s.series[m] = NewSeries(window)
	}
	return s
}

// Series returns the series for m.
func (s *Sampler) Series(m Metric) *Series {
	if ser, ok := s.series[m]; ok {
		return ser
	}
	return s.series[MetricOps]
}

func delta(cur, prev uint64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur - prev)
}

// Sample takes one reading at now and records it in every series. It reports
// false if now repeats the previous sample time.
func (s *Sampler) Sample(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last := s.series[MetricOps].LastAt(); s.series[MetricOps].Len() > 0 && now.Equal(last) {
		return false
	}
	cur := s.src.Read()
	s.series[MetricOps].Observe(Sample{At: now, Value: delta(cur.Ops, s.prev.Ops)})
	s.series[MetricBytes].Observe(Sample{At: now, Value: delta(cur.Bytes, s.prev.Bytes)})
	s.series[MetricErrors].Observe(Sample{At: now, Value: delta(cur.Errors, s.prev.Errors)})
	s.series[MetricEntries].Observe(Sample{At: now, Value: float64(cur.Entries)})
	s.prev = cur
	logging.StatsDebug("sample ops=%d bytes=%d errors=%d entries=%d", cur.Ops, cur.Bytes, cur.Errors, cur.Entries)
	return true
}

// Run samples every interval until ctx ends, calling onSample (if set) after
// each accepted sample.
func (s *Sampler) Run(ctx context.Context, interval time.Duration, onSample func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.Sample(now) && onSample != nil {
				onSample(now)
			}
		}
	}
}
