// Package executor runs workload operations on a pool of worker goroutines
// against the storage engine and streams their progress.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"wtmt/internal/engine"
	"wtmt/internal/logging"
	"wtmt/internal/workload"
)

// Config configures an Executor.
type Config struct {
	Workers        int // concurrent operations
	QueueDepth     int // operations waiting for a worker
	BatchSize      int // items per engine call and per progress message
	ProgressBuffer int // buffered progress messages
}

// DefaultConfig returns the defaults used by the dashboard.
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		QueueDepth:     64,
		BatchSize:      100,
		ProgressBuffer: 256,
	}
}

// slowBatchThreshold is the engine call duration above which a batch is logged as slow.
var slowBatchThreshold = time.Second

// job is one submitted operation and its private cancellation.
type job struct {
	state  *workload.OperationState
	ctx    context.Context
	cancel context.CancelFunc
	log    *logging.Logger
}

// Executor owns a bounded work queue and the workers draining it.
type Executor struct {
	eng engine.Engine
	reg *workload.Registry
	cfg Config
	now func() time.Time

	queue    chan *job
	progress chan workload.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.RWMutex
	jobs    map[string]*job
	order   []string
	stopped bool

	stopOnce sync.Once
}

// New starts an executor with cfg.Workers workers. Zero config fields take defaults.
func New(eng engine.Engine, reg *workload.Registry, cfg Config) *Executor {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = def.QueueDepth
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.ProgressBuffer <= 0 {
		cfg.ProgressBuffer = def.ProgressBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		eng:      eng,
		reg:      reg,
		cfg:      cfg,
		now:      time.Now,
		queue:    make(chan *job, cfg.QueueDepth),
		progress: make(chan workload.Snapshot, cfg.ProgressBuffer),
		ctx:      ctx,
		cancel:   cancel,
		group:    &errgroup.Group{},
		jobs:     make(map[string]*job),
	}

	e.group.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		id := i
		e.group.Go(func() error {
			e.worker(id)
			return nil
		})
	}
	logging.Executor("executor started: workers=%d queue=%d batch=%d", cfg.Workers, cfg.QueueDepth, cfg.BatchSize)
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

// Progress is the channel of progress messages. It is closed by Stop.
// Senders block until the message is taken, so it must be drained.
func (e *Executor) Progress() <-chan workload.Snapshot { return e.progress }

// Submit enqueues op without blocking and returns its pending snapshot.
func (e *Executor) Submit(op *workload.Operation) (workload.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		logging.Audit().OpReject(op.String(), ErrStopped)
		return workload.Snapshot{}, ErrStopped
	}

	ctx, cancel := context.WithCancel(e.ctx)
	j := &job{
		state:  workload.NewOperationState(op, e.now()),
		ctx:    ctx,
		cancel: cancel,
		log:    logging.Get(logging.CategoryExecutor).With("op", op.ShortID(), "table", op.Table.Name()),
	}

	select {
	case e.queue <- j:
	default:
		cancel()
		logging.ExecutorWarn("queue full, rejected %s", op)
		logging.Audit().OpReject(op.String(), ErrQueueFull)
		return workload.Snapshot{}, fmt.Errorf("%w (%d queued)", ErrQueueFull, cap(e.queue))
	}

	e.jobs[op.ID] = j
	e.order = append(e.order, op.ID)
	logging.ExecutorDebug("submitted %s [%s]", op, op.ShortID())
	logging.Audit().OpSubmit(op.ID, op.String(), op.Total())
	return j.state.Snapshot(), nil
}

// find resolves a full ID or unique ID prefix. Caller holds e.mu.
func (e *Executor) find(id string) (*job, error) {
	if j, ok := e.jobs[id]; ok {
		return j, nil
	}
	var match *job
	for full, j := range e.jobs {
		if id != "" && strings.HasPrefix(full, id) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguousOperation, id)
			}
			match = j
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	return match, nil
}

// Cancel cancels the operation with the given ID or unique ID prefix. A pending
// operation fails immediately; a running one fails at its next batch boundary.
// Canceling a finished operation is a no-op.
func (e *Executor) Cancel(id string) (workload.Snapshot, error) {
	e.mu.RLock()
	j, err := e.find(id)
	e.mu.RUnlock()
	if err != nil {
		return workload.Snapshot{}, err
	}

	j.cancel()
	failed := j.state.FailIfPending(context.Canceled, e.now())
	snap := j.state.Snapshot()
	logging.Executor("cancel requested for %s [%s]: %s", snap.Command, snap.ShortID(), snap.Status)
	logging.Audit().OpCancel(snap.ID, snap.Command, snap.Status.String())
	if failed {
		logging.Audit().OpEnd(snap.ID, snap.Command, 0, snap.Total, 0, snap.Err)
	}
	return snap, nil
}

// Snapshot returns the state of one operation by ID or unique ID prefix.
func (e *Executor) Snapshot(id string) (workload.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	j, err := e.find(id)
	if err != nil {
		return workload.Snapshot{}, err
	}
	return j.state.Snapshot(), nil
}

// Operations returns snapshots of all known operations in submission order.
func (e *Executor) Operations() []workload.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]workload.Snapshot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.jobs[id].state.Snapshot())
	}
	return out
}

// Prune forgets finished operations and returns how many were removed.
func (e *Executor) Prune() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.order[:0]
	removed := 0
	for _, id := range e.order {
		if e.jobs[id].state.Snapshot().Status.Terminal() {
			delete(e.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	e.order = kept
	return removed
}

// Stop cancels all outstanding operations, waits for the workers to exit and
// closes the progress channel. Safe to call more than once.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()

		e.cancel()
		_ = e.group.Wait()

		var ended []workload.Snapshot
		e.mu.RLock()
		for _, id := range e.order {
			j := e.jobs[id]
			if j.state.FailIfPending(context.Canceled, e.now()) {
				snap := j.state.Snapshot()
				logging.Audit().OpEnd(snap.ID, snap.Command, 0, snap.Total, 0, snap.Err)
				ended = append(ended, snap)
			}
			j.cancel()
		}
		e.mu.RUnlock()

		// Final messages for operations that never ran, while buffer space lasts.
		for _, s := range ended {
			select {
			case e.progress <- s:
			default:
				logging.ExecutorWarn("progress buffer full, dropped final message for [%s]", s.ShortID())
			}
		}
		close(e.progress)
		logging.Executor("executor stopped")
	})
}

// publish delivers a progress message. Once the executor is shutting down it
// only uses free buffer space.
func (e *Executor) publish(s workload.Snapshot) {
	select {
	case e.progress <- s:
		return
	default:
	}
	select {
	case e.progress <- s:
	case <-e.ctx.Done():
	}
}

func (e *Executor) worker(id int) {
	logging.ExecutorDebug("worker %d started", id)
	defer logging.ExecutorDebug("worker %d exiting", id)
	for {
		select {
		case <-e.ctx.Done():
			return
		case j := <-e.queue:
			if e.ctx.Err() != nil {
				// Stop fails whatever is still pending.
				return
			}
			e.run(j)
		}
	}
}

func (e *Executor) run(j *job) {
	defer j.cancel()
	st := j.state
	op := st.Operation()

	if err := st.Start(e.now()); err != nil {
		// Canceled while queued.
		e.publish(st.Snapshot())
		return
	}
	if err := j.ctx.Err(); err != nil {
		e.finish(j, err)
		return
	}
	e.publish(st.Snapshot())

	timer := logging.StartTimer(logging.CategoryExecutor, op.String())
	defer timer.Stop()

	var err error
	switch op.Kind {
	case workload.KindInsert:
		err = e.runInsert(j)
	case workload.KindUpdate:
		err = e.runUpdate(j)
	case workload.KindDelete:
		err = e.runDelete(j)
	case workload.KindDrop:
		err = e.runDrop(j)
	default:
		err = fmt.Errorf("%w: %s", workload.ErrInvalidOperation, op.Kind)
	}
	e.finish(j, err)
}

// finish moves the operation to its terminal state and publishes it.
func (e *Executor) finish(j *job, err error) {
	st := j.state
	op := st.Operation()
	if err != nil {
		err = translateError(err)
		_ = st.Fail(err, e.now())
		if errors.Is(err, context.Canceled) {
			logging.Executor("%s [%s] canceled", op, op.ShortID())
		} else {
			logging.ExecutorError("%s [%s] failed: %v", op, op.ShortID(), err)
		}
	} else {
		_ = st.Finish(e.now())
		snap := st.Snapshot()
		if snap.Short() {
			logging.ExecutorWarn("%s [%s] finished short: %d/%d", op, op.ShortID(), snap.Completed, snap.Total)
		} else {
			logging.Executor("%s [%s] done", op, op.ShortID())
		}
	}
	snap := st.Snapshot()
	logging.Audit().OpEnd(snap.ID, snap.Command, snap.Completed, snap.Total, snap.Elapsed(snap.Finished), snap.Err)
	e.publish(snap)
}

// translateError maps engine errors onto the workload vocabulary.
func translateError(err error) error {
	if errors.Is(err, engine.ErrTableNotFound) && !errors.Is(err, workload.ErrNoSuchTable) {
		return fmt.Errorf("%w: %w", workload.ErrNoSuchTable, err)
	}
	return err
}

// advance records n finished items and publishes the new progress.
func (e *Executor) advance(j *job, n int) error {
	if err := j.state.Advance(int64(n)); err != nil {
		return err
	}
	snap := j.state.Snapshot()
	if j.log.Enabled() {
		j.log.Debug("progress %d/%d", snap.Completed, snap.Total)
	}
	e.publish(snap)
	return nil
}

// timeBatch starts timing one engine call for j.
func timeBatch(j *job, call string, n int) *logging.Timer {
	op := j.state.Operation()
	return logging.StartTimer(logging.CategoryExecutor,
		fmt.Sprintf("%s batch of %d on %s [%s]", call, n, op.Table.URI(), op.ShortID()))
}

func (e *Executor) batch(remaining int64) int {
	if remaining < int64(e.cfg.BatchSize) {
		return int(remaining)
	}
	return e.cfg.BatchSize
}

func (e *Executor) runInsert(j *job) error {
	op := j.state.Operation()
	t := op.Table
	remaining := op.Total()
	created := false

	for remaining > 0 {
		if err := j.ctx.Err(); err != nil {
			return err
		}
		release, err := t.AcquireBatch()
		if err != nil {
			return err
		}
		if !created {
			if err := e.eng.CreateTable(j.ctx, t.Name()); err != nil {
				release()
				return err
			}
			created = true
		}
		keys := t.ReserveKeys(e.batch(remaining))
		timer := timeBatch(j, "insert", len(keys))
		n, err := e.eng.Insert(j.ctx, t.Name(), keys)
		timer.StopWithThreshold(slowBatchThreshold)
		if err == nil {
			t.AddEntries(int64(n))
		}
		release()
		if err != nil {
			return err
		}
		if err := e.advance(j, n); err != nil {
			return err
		}
		remaining -= int64(n)
	}
	return nil
}

// runUpdate walks keys in ascending order, wrapping to the start of the table
// until count rows have been rewritten.
func (e *Executor) runUpdate(j *job) error {
	op := j.state.Operation()
	t := op.Table
	remaining := op.Total()
	var after int64

	for remaining > 0 {
		if err := j.ctx.Err(); err != nil {
			return err
		}
		release, err := t.AcquireBatch()
		if err != nil {
			return err
		}
		want := e.batch(remaining)
		timer := timeBatch(j, "update", want)
		n, last, err := e.eng.Update(j.ctx, t.Name(), after, want)
		timer.StopWithThreshold(slowBatchThreshold)
		release()
		if err != nil {
			return err
		}
		if n == 0 {
			if after == 0 {
				return fmt.Errorf("%w: %s", workload.ErrEmptyTable, t.Name())
			}
			after = 0
			continue
		}
		after = last
		if err := e.advance(j, n); err != nil {
			return err
		}
		remaining -= int64(n)
	}
	return nil
}

// runDelete removes the lowest keys first and stops early, still succeeding,
// when the table runs out of rows.
func (e *Executor) runDelete(j *job) error {
	op := j.state.Operation()
	t := op.Table
	remaining := op.Total()

	for remaining > 0 {
		if err := j.ctx.Err(); err != nil {
			return err
		}
		release, err := t.AcquireBatch()
		if err != nil {
			return err
		}
		want := e.batch(remaining)
		timer := timeBatch(j, "delete", want)
		n, err := e.eng.Delete(j.ctx, t.Name(), want)
		timer.StopWithThreshold(slowBatchThreshold)
		if err == nil {
			t.AddEntries(-int64(n))
		}
		release()
		if err != nil {
			return err
		}
		if err := e.advance(j, n); err != nil {
			return err
		}
		remaining -= int64(n)
		if n < want {
			logging.ExecutorDebug("%s exhausted after %d rows", t.URI(), op.Total()-remaining)
			return nil
		}
	}
	return nil
}

// runDrop waits for in-flight batches on the table, then drops it.
func (e *Executor) runDrop(j *job) error {
	t := j.state.Operation().Table
	if err := j.ctx.Err(); err != nil {
		return err
	}
	release, err := t.AcquireDrop()
	if err != nil {
		return err
	}
	defer release()

	if err := e.eng.Drop(j.ctx, t.Name()); err != nil {
		// Registered but never written: only the handle needs to go.
		if !errors.Is(err, engine.ErrTableNotFound) {
			return err
		}
		logging.ExecutorDebug("%s had no engine table", t.URI())
	}
	e.reg.Drop(t)
	return e.advance(j, 1)
}
