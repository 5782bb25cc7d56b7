package executor

import "errors"

var (
	// ErrQueueFull is returned by Submit when the work queue cannot take more operations.
	ErrQueueFull = errors.New("work queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("executor is stopped")
	// ErrUnknownOperation is returned when no operation matches an ID or ID prefix.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrAmbiguousOperation is returned when an ID prefix matches several operations.
	ErrAmbiguousOperation = errors.New("ambiguous operation id")
)
