package stats

import (
	"sync"
	"time"
)

// DefaultWindow is the number of samples kept per series.
const DefaultWindow = 200

// Sample is one observation.
type Sample struct {
	At    time.Time
	Value float64
}

// Series is a sliding window of samples plus the running maximum used to
// scale the chart. The maximum covers every sample since creation, not just
// the window.
type Series struct {
	mu   sync.RWMutex
	ring *Ring[Sample]
	max  float64
	last time.Time
}

// NewSeries creates a series keeping the most recent window samples.
func NewSeries(window int) *Series {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Series{ring: NewRing[Sample](window)}
}

// Observe records s and reports whether it was accepted. A sample carrying
// the same timestamp as the last accepted one is ignored.
func (s *Series) Observe(sample Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring.Len() > 0 && sample.At.Equal(s.last) {
		return false
	}
	s.ring.Push(sample)
	s.last = sample.At
	if sample.Value > s.max {
		s.max = sample.Value
	}
	return true
}

// Max is the largest value ever observed.
func (s *Series) Max() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.max
}

// LastAt is the timestamp of the newest accepted sample.
func (s *Series) LastAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Latest returns the newest sample.
func (s *Series) Latest() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Last()
}

// Len is the number of samples in the window.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Len()
}

// Values returns the sample values in the window, oldest first.
func (s *Series) Values() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, s.ring.Len())
	for i := range out {
		out[i] = s.ring.At(i).Value
	}
	return out
}
