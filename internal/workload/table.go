// Package workload defines the workload vocabulary: shared table handles, the
// operations issued against them, and the lifecycle of each operation.
package workload

import (
	"sync"
	"sync/atomic"
)

// Table is the single in-process handle for a named table in the storage engine.
// Handles are owned by a Registry and shared by pointer among all operations
// targeting the table.
type Table struct {
	name string

	entries atomic.Int64 // cached row count, never negative
	lastKey atomic.Int64 // highest key handed out for inserts
	dropped atomic.Bool

	// Data batches hold the read lock, Drop holds the write lock.
	mu sync.RWMutex
}

func newTable(name string) *Table {
	return &Table{name: name}
}

// Name returns the table name without the "table:" prefix.
func (t *Table) Name() string { return t.name }

// URI returns the engine-style name, e.g. "table:test-a".
func (t *Table) URI() string { return "table:" + t.name }

func (t *Table) String() string { return t.URI() }

// TotalEntries returns the cached number of rows.
func (t *Table) TotalEntries() int64 { return t.entries.Load() }

// AddEntries adjusts the cached row count by delta, clamping at zero.
func (t *Table) AddEntries(delta int64) int64 {
	for {
		cur := t.entries.Load()
		next := cur + delta
		if next < 0 {
			next = 0
		}
		if t.entries.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// SetEntries overwrites the cached row count, e.g. after counting in the engine.
func (t *Table) SetEntries(n int64) {
	if n < 0 {
		n = 0
	}
	t.entries.Store(n)
}

// SeedKeys records the highest key already present so new inserts do not collide.
func (t *Table) SeedKeys(maxKey int64) {
	for {
		cur := t.lastKey.Load()
		if maxKey <= cur || t.lastKey.CompareAndSwap(cur, maxKey) {
			return
		}
	}
}

// ReserveKeys allocates n consecutive fresh keys and returns them.
func (t *Table) ReserveKeys(n int) []int64 {
	if n <= 0 {
		return nil
	}
	last := t.lastKey.Add(int64(n))
	keys := make([]int64, n)
	first := last - int64(n) + 1
	for i := range keys {
		keys[i] = first + int64(i)
	}
	return keys
}

// Dropped reports whether the table has been dropped.
func (t *Table) Dropped() bool { return t.dropped.Load() }

// AcquireBatch takes the shared lock for one batch of data work.
// The returned release func must be called when the batch ends.
func (t *Table) AcquireBatch() (release func(), err error) {
	t.mu.RLock()
	if t.dropped.Load() {
		t.mu.RUnlock()
		return nil, ErrTableDropped
	}
	return t.mu.RUnlock, nil
}

// AcquireDrop takes the exclusive lock, waiting for in-flight batches to finish.
// markDropped must be called (under the lock) if the drop succeeds.
func (t *Table) AcquireDrop() (release func(), err error) {
	t.mu.Lock()
	if t.dropped.Load() {
		t.mu.Unlock()
		return nil, ErrTableDropped
	}
	return t.mu.Unlock, nil
}

func (t *Table) markDropped() {
	t.dropped.Store(true)
	t.entries.Store(0)
}
