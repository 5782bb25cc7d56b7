package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wtmt/internal/engine"
)

// fakeEngine is an in-memory engine.Engine. If gate is set, every data call
// waits for a value on it first.
type fakeEngine struct {
	mu     sync.Mutex
	tables map[string]map[int64]int64 // key -> version
	stats  engine.Statistics
	gate   chan struct{}
	calls  int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{tables: make(map[string]map[int64]int64)}
}

func (f *fakeEngine) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeEngine) table(name string) (map[int64]int64, error) {
	t, ok := f.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrTableNotFound, name)
	}
	return t, nil
}

func (f *fakeEngine) sortedKeys(t map[int64]int64) []int64 {
	keys := make([]int64, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (f *fakeEngine) CreateTable(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tables[name]; !ok {
		f.tables[name] = make(map[int64]int64)
	}
	return nil
}

func (f *fakeEngine) Insert(ctx context.Context, name string, keys []int64) (int, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	t, err := f.table(name)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if _, dup := t[k]; dup {
			return 0, fmt.Errorf("duplicate key %d", k)
		}
	}
	for _, k := range keys {
		t[k] = 0
	}
	f.stats.Record(engine.TickerKeysInserted, uint64(len(keys)))
	return len(keys), nil
}

func (f *fakeEngine) Update(ctx context.Context, name string, after int64, limit int) (int, int64, error) {
	if err := f.wait(ctx); err != nil {
		return 0, after, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	t, err := f.table(name)
	if err != nil {
		return 0, after, err
	}
	n, last := 0, after
	for _, k := range f.sortedKeys(t) {
		if k <= after {
			continue
		}
		if n == limit {
			break
		}
		t[k]++
		n++
		last = k
	}
	f.stats.Record(engine.TickerKeysUpdated, uint64(n))
	return n, last, nil
}

func (f *fakeEngine) Delete(ctx context.Context, name string, limit int) (int, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	t, err := f.table(name)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range f.sortedKeys(t) {
		if n == limit {
			break
		}
		delete(t, k)
		n++
	}
	f.stats.Record(engine.TickerKeysDeleted, uint64(n))
	return n, nil
}

func (f *fakeEngine) Drop(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.table(name); err != nil {
		return err
	}
	delete(f.tables, name)
	f.stats.Record(engine.TickerTablesDropped, 1)
	return nil
}

func (f *fakeEngine) Count(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(name)
	if err != nil {
		return 0, err
	}
	return int64(len(t)), nil
}

func (f *fakeEngine) Tables(ctx context.Context) ([]engine.TableInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []engine.TableInfo
	for name, t := range f.tables {
		info := engine.TableInfo{Name: name, Entries: int64(len(t))}
		for k := range t {
			if k > info.MaxKey {
				info.MaxKey = k
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeEngine) Verify(ctx context.Context, name string, limit int) (engine.VerifyResult, error) {
	n, err := f.Count(ctx, name)
	return engine.VerifyResult{Checked: int(n)}, err
}

func (f *fakeEngine) Stats() *engine.Statistics { return &f.stats }

func (f *fakeEngine) Close() error { return nil }

func (f *fakeEngine) versions(name string) map[int64]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]int64)
	for k, v := range f.tables[name] {
		out[k] = v
	}
	return out
}
