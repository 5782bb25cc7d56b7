package workload

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the workload action an operation performs.
type Kind int

const (
	KindInsert Kind = iota
	KindUpdate
	KindDelete
	KindDrop
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindDrop:
		return "drop"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Operation is one requested workload action, e.g. "insert 100 foo" inserts
// 100 items into table:foo. Drop carries no count.
type Operation struct {
	ID    string
	Kind  Kind
	Table *Table
	Count uint32
}

// NewOperation validates and builds an operation with a fresh ID.
func NewOperation(kind Kind, table *Table, count uint32) (*Operation, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil table", ErrInvalidOperation)
	}
	switch kind {
	case KindInsert, KindUpdate, KindDelete:
		if count == 0 {
			return nil, fmt.Errorf("%w: %s needs a positive count", ErrInvalidOperation, kind)
		}
	case KindDrop:
		count = 0
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidOperation, int(kind))
	}
	return &Operation{ID: uuid.NewString(), Kind: kind, Table: table, Count: count}, nil
}

// Total is the number of units of work: Count for data operations, 1 for Drop.
func (o *Operation) Total() int64 {
	if o.Kind == KindDrop {
		return 1
	}
	return int64(o.Count)
}

// ShortID is the first 8 characters of the ID, enough to address it interactively.
func (o *Operation) ShortID() string {
	if len(o.ID) > 8 {
		return o.ID[:8]
	}
	return o.ID
}

// String renders the operation in command syntax.
func (o *Operation) String() string {
	if o.Kind == KindDrop {
		return fmt.Sprintf("drop %s", o.Table.Name())
	}
	return fmt.Sprintf("%s %d %s", o.Kind, o.Count, o.Table.Name())
}
