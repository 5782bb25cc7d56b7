package workload

import (
	"fmt"
	"sync"
	"time"
)

// Status is a step in an operation's lifecycle:
// Pending -> InProgress -> Done | Failed.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// OperationState tracks the progress of one operation. Only the worker that owns
// the operation mutates it; everyone else reads Snapshots.
type OperationState struct {
	mu        sync.RWMutex
	op        *Operation
	status    Status
	completed int64
	err       error
	submitted time.Time
	started   time.Time
	finished  time.Time
}

// NewOperationState creates a pending state for op.
func NewOperationState(op *Operation, now time.Time) *OperationState {
	return &OperationState{op: op, submitted: now}
}

// Operation returns the tracked operation.
func (s *OperationState) Operation() *Operation { return s.op }

// Start moves Pending to InProgress.
func (s *OperationState) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPending {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.status)
	}
	s.status = StatusInProgress
	s.started = now
	return nil
}

// Advance records n more completed items.
func (s *OperationState) Advance(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return fmt.Errorf("%w: advance while %s", ErrInvalidTransition, s.status)
	}
	if n < 0 || s.completed+n > s.op.Total() {
		return fmt.Errorf("%w: advance %d from %d/%d", ErrInvalidTransition, n, s.completed, s.op.Total())
	}
	s.completed += n
	return nil
}

// Finish moves InProgress to Done.
func (s *OperationState) Finish(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return fmt.Errorf("%w: finish from %s", ErrInvalidTransition, s.status)
	}
	s.status = StatusDone
	s.finished = now
	return nil
}

// Fail moves a non-terminal state to Failed.
func (s *OperationState) Fail(err error, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return fmt.Errorf("%w: fail from %s", ErrInvalidTransition, s.status)
	}
	s.status = StatusFailed
	s.err = err
	s.finished = now
	return nil
}

// FailIfPending fails the operation only if no worker has started it yet.
// It reports whether the transition happened.
func (s *OperationState) FailIfPending(err error, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPending {
		return false
	}
	s.status = StatusFailed
	s.err = err
	s.finished = now
	return true
}

// Snapshot returns a consistent copy of the state.
func (s *OperationState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:        s.op.ID,
		Kind:      s.op.Kind,
		Table:     s.op.Table.Name(),
		Command:   s.op.String(),
		Completed: s.completed,
		Total:     s.op.Total(),
		Status:    s.status,
		Err:       s.err,
		Submitted: s.submitted,
		Started:   s.started,
		Finished:  s.finished,
	}
}

// Snapshot is an immutable view of an OperationState. It doubles as the
// progress message published to the display layer.
type Snapshot struct {
	ID        string
	Kind      Kind
	Table     string
	Command   string
	Completed int64
	Total     int64
	Status    Status
	Err       error
	Submitted time.Time
	Started   time.Time
	Finished  time.Time
}

// ShortID is the first 8 characters of the operation ID.
func (s Snapshot) ShortID() string {
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

// Fraction is Completed/Total in [0,1].
func (s Snapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

// Short reports a Done operation that completed fewer items than requested.
func (s Snapshot) Short() bool {
	return s.Status == StatusDone && s.Completed < s.Total
}

// Elapsed is the running time, measured to now for unfinished operations.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	if !s.Finished.IsZero() {
		return s.Finished.Sub(s.Started)
	}
	return now.Sub(s.Started)
}
