package workload

import "errors"

var (
	// ErrNoSuchTable is returned when an operation names a table the registry does not hold.
	ErrNoSuchTable = errors.New("no such table")
	// ErrTableDropped is returned for work against a table that was dropped after submission.
	ErrTableDropped = errors.New("table dropped")
	// ErrEmptyTable is returned when an update targets a table with no rows.
	ErrEmptyTable = errors.New("table is empty")
	// ErrInvalidTransition is returned when an operation state change would move backwards.
	ErrInvalidTransition = errors.New("invalid operation state transition")
	// ErrInvalidOperation is returned for malformed operations.
	ErrInvalidOperation = errors.New("invalid operation")
)
