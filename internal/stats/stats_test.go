package stats

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtmt/internal/engine"
	"wtmt/internal/workload"
)

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := NewRing[int](DefaultWindow)
	for i := 0; i < 250; i++ {
		r.Push(i)
	}
	require.Equal(t, 200, r.Len())
	assert.Equal(t, 200, r.Cap())

	vals := r.Values()
	assert.Equal(t, 50, vals[0])
	assert.Equal(t, 249, vals[199])
	for i := 1; i < len(vals); i++ {
		assert.Equal(t, vals[i-1]+1, vals[i])
	}
	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, 249, last)
}

func TestRing_PartialAndEmpty(t *testing.T) {
	r := NewRing[string](3)
	_, ok := r.Last()
	assert.False(t, ok)
	assert.Empty(t, r.Values())

	r.Push("a")
	r.Push("b")
	assert.Equal(t, []string{"a", "b"}, r.Values())

	r.Push("c")
	r.Push("d")
	assert.Equal(t, []string{"b", "c", "d"}, r.Values())

	assert.Equal(t, 1, NewRing[int](0).Cap())
}

func TestSeries_MaxAndDuplicateTimestamps(t *testing.T) {
	s := NewSeries(3)
	t0 := time.Unix(1000, 0)

	assert.True(t, s.Observe(Sample{At: t0, Value: 5}))
	assert.False(t, s.Observe(Sample{At: t0, Value: 99}))
	assert.True(t, s.Observe(Sample{At: t0.Add(time.Second), Value: 2}))
	assert.True(t, s.Observe(Sample{At: t0.Add(2 * time.Second), Value: 1}))
	assert.True(t, s.Observe(Sample{At: t0.Add(3 * time.Second), Value: 0}))

	// 5 was evicted but still bounds the scale.
	assert.Equal(t, []float64{2, 1, 0}, s.Values())
	assert.Equal(t, 5.0, s.Max())
	assert.Equal(t, t0.Add(3*time.Second), s.LastAt())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, 0.0, latest.Value)
}

func TestParseMetric(t *testing.T) {
	for _, m := range Metrics() {
		got, err := ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
		assert.NotEmpty(t, m.Title())
	}
	got, err := ParseMetric(" OPS ")
	require.NoError(t, err)
	assert.Equal(t, MetricOps, got)

	_, err = ParseMetric("latency")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

type fakeSource struct {
	r atomic.Pointer[Reading]
}

func (f *fakeSource) set(r Reading) { f.r.Store(&r) }
func (f *fakeSource) Read() Reading  { return *f.r.Load() }

func TestSampler_Deltas(t *testing.T) {
	src := &fakeSource{}
	src.set(Reading{Ops: 100, Bytes: 1000, Errors: 1, Entries: 50})
	s := NewSampler(src, 10)

	t0 := time.Unix(0, 0)
	src.set(Reading{Ops: 130, Bytes: 1600, Errors: 1, Entries: 80})
	require.True(t, s.Sample(t0))
	assert.False(t, s.Sample(t0))

	src.set(Reading{Ops: 135, Bytes: 1700, Errors: 3, Entries: 70})
	require.True(t, s.Sample(t0.Add(500*time.Millisecond)))

	assert.Equal(t, []float64{30, 5}, s.Series(MetricOps).Values())
	assert.Equal(t, []float64{600, 100}, s.Series(MetricBytes).Values())
	assert.Equal(t, []float64{0, 2}, s.Series(MetricErrors).Values())
	assert.Equal(t, []float64{80, 70}, s.Series(MetricEntries).Values())
	assert.Equal(t, 30.0, s.Series(MetricOps).Max())
}

func TestEngineSource(t *testing.T) {
	var st engine.Statistics
	st.Record(engine.TickerKeysInserted, 10)
	st.Record(engine.TickerKeysDeleted, 4)
	st.Record(engine.TickerBytesStored, 123)
	st.Record(engine.TickerErrors, 2)

	reg := workload.NewRegistry()
	reg.Acquire("a").SetEntries(6)
	reg.Acquire("b").SetEntries(1)

	r := EngineSource{Stats: &st, Registry: reg}.Read()
	assert.Equal(t, Reading{Ops: 14, Bytes: 123, Errors: 2, Entries: 7}, r)
}

func TestSampler_Run(t *testing.T) {
	src := &fakeSource{}
	src.set(Reading{})
	s := NewSampler(src, 10)

	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, 5*time.Millisecond, func(time.Time) {
			if n.Add(1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("sampler did not stop")
	}
	assert.GreaterOrEqual(t, s.Series(MetricOps).Len(), 3)
}
