package workload

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"wtmt/internal/logging"
)

// Registry maps table names to their shared handles.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Table)}
}

// NormalizeName strips an optional "table:" prefix.
func NormalizeName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "table:")
}

// Acquire returns the handle for name, creating it if needed.
func (r *Registry) Acquire(name string) *Table {
	name = NormalizeName(name)

	r.mu.RLock()
	t, ok := r.tables[name]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[name]; ok {
		return t
	}
	t = newTable(name)
	r.tables[name] = t
	logging.WorkloadDebug("registered table %s", t.URI())
	return t
}

// Lookup returns the handle for name or ErrNoSuchTable.
func (r *Registry) Lookup(name string) (*Table, error) {
	name = NormalizeName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, name)
	}
	return t, nil
}

// Load registers an existing engine table with its current row count and highest key.
func (r *Registry) Load(name string, entries, maxKey int64) *Table {
	t := r.Acquire(name)
	t.SetEntries(entries)
	t.SeedKeys(maxKey)
	return t
}

// Drop marks t dropped and removes it from the registry. The caller must hold
// the lock returned by t.AcquireDrop. A later Acquire of the same name returns
// a fresh handle.
func (r *Registry) Drop(t *Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.markDropped()
	if cur, ok := r.tables[t.name]; ok && cur == t {
		delete(r.tables, t.name)
	}
	logging.Workload("dropped table %s", t.URI())
}

// Tables returns the registered handles sorted by name.
func (r *Registry) Tables() []*Table {
	r.mu.RLock()
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// TotalEntries sums the cached row counts of all tables.
func (r *Registry) TotalEntries() int64 {
	var total int64
	for _, t := range r.Tables() {
		total += t.TotalEntries()
	}
	return total
}
