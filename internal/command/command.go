// Package command parses the free-text lines typed into the command pane,
// e.g. "insert 1000 test-a", into workload operations and dashboard commands.
package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"wtmt/internal/logging"
	"wtmt/internal/workload"
)

// Verb is the first word of a command line.
type Verb int

const (
	VerbInsert Verb = iota
	VerbUpdate
	VerbDelete
	VerbDrop
	VerbHelp
	VerbClear
	VerbCancel
	VerbStat
	VerbTables
	VerbQuit
)

var verbNames = map[string]Verb{
	"insert": VerbInsert,
	"update": VerbUpdate,
	"delete": VerbDelete,
	"drop":   VerbDrop,
	"help":   VerbHelp,
	"?":      VerbHelp,
	"clear":  VerbClear,
	"cancel": VerbCancel,
	"stat":   VerbStat,
	"tables": VerbTables,
	"quit":   VerbQuit,
	"exit":   VerbQuit,
}

func (v Verb) String() string {
	for name, verb := range verbNames {
		if verb == v && name != "?" && name != "exit" {
			return name
		}
	}
	return fmt.Sprintf("verb(%d)", int(v))
}

// Usage lines, one per command, in the order help shows them.
var Usage = []string{
	"insert <count> <table>",
	"update <count> <table>",
	"delete <count> <table>",
	"drop <table>",
	"cancel <op-id>",
	"stat <ops|entries|bytes|errors>",
	"tables",
	"clear",
	"help",
	"quit",
}

// MaxTableName bounds table name length.
const MaxTableName = 64

// ReservedPrefix starts the names of the database's internal tables.
const ReservedPrefix = "sqlite_"

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Command is a parsed command line.
type Command struct {
	Verb  Verb
	Count uint32 // insert, update, delete
	Table string // insert, update, delete, drop
	Arg   string // cancel, stat
}

// IsOperation reports whether the command is a workload operation.
func (c Command) IsOperation() bool {
	switch c.Verb {
	case VerbInsert, VerbUpdate, VerbDelete, VerbDrop:
		return true
	}
	return false
}

// Kind maps an operation verb to its workload kind.
func (c Command) Kind() (workload.Kind, bool) {
	switch c.Verb {
	case VerbInsert:
		return workload.KindInsert, true
	case VerbUpdate:
		return workload.KindUpdate, true
	case VerbDelete:
		return workload.KindDelete, true
	case VerbDrop:
		return workload.KindDrop, true
	}
	return 0, false
}

// ParseError describes why a line could not be parsed.
type ParseError struct {
	Input  string
	Token  int // index of the offending token, -1 for the line as a whole
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token < 0 {
		return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
	}
	fields := strings.Fields(e.Input)
	if e.Token < len(fields) {
		return fmt.Sprintf("parse %q: %s (at %q)", e.Input, e.Reason, fields[e.Token])
	}
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// Parse parses one command line.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	fail := func(tok int, format string, args ...interface{}) (Command, error) {
		return Command{}, &ParseError{Input: strings.TrimSpace(line), Token: tok, Reason: fmt.Sprintf(format, args...)}
	}

	if len(fields) == 0 {
		return fail(-1, "empty command")
	}

	verb, ok := verbNames[strings.ToLower(fields[0])]
	if !ok {
		return fail(0, "unknown command")
	}
	args := fields[1:]
	cmd := Command{Verb: verb}

	switch verb {
	case VerbInsert, VerbUpdate, VerbDelete:
		if len(args) != 2 {
			return fail(-1, "usage: %s <count> <table>", verb)
		}
		n, err := parseCount(args[0])
		if err != nil {
			return fail(1, "%v", err)
		}
		name, err := parseTable(args[1])
		if err != nil {
			return fail(2, "%v", err)
		}
		cmd.Count, cmd.Table = n, name

	case VerbDrop:
		if len(args) != 1 {
			return fail(-1, "usage: drop <table>")
		}
		name, err := parseTable(args[0])
		if err != nil {
			return fail(1, "%v", err)
		}
		cmd.Table = name

	case VerbCancel, VerbStat:
		if len(args) != 1 {
			return fail(-1, "usage: %s <arg>", verb)
		}
		cmd.Arg = strings.ToLower(args[0])

	default:
		if len(args) != 0 {
			return fail(1, "%s takes no arguments", verb)
		}
	}
	return cmd, nil
}

func parseCount(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, fmt.Errorf("count out of range (max %d)", uint32(1<<32-1))
		}
		return 0, fmt.Errorf("count must be a positive integer")
	}
	if n == 0 {
		return 0, fmt.Errorf("count must be positive")
	}
	return uint32(n), nil
}

func parseTable(s string) (string, error) {
	name := workload.NormalizeName(s)
	if name == "" {
		return "", fmt.Errorf("missing table name")
	}
	if len(name) > MaxTableName {
		return "", fmt.Errorf("table name longer than %d characters", MaxTableName)
	}
	if !tableNameRE.MatchString(name) {
		return "", fmt.Errorf("invalid table name")
	}
	if strings.HasPrefix(strings.ToLower(name), ReservedPrefix) {
		return "", fmt.Errorf("table names starting with %q are reserved", ReservedPrefix)
	}
	return name, nil
}

// Resolve turns an operation command into an Operation bound to the registry's
// shared table handle. Insert creates the table handle if needed; the other
// operations require the table to exist.
func Resolve(cmd Command, reg *workload.Registry) (*workload.Operation, error) {
	kind, ok := cmd.Kind()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a workload operation", workload.ErrInvalidOperation, cmd.Verb)
	}

	var table *workload.Table
	if kind == workload.KindInsert {
		table = reg.Acquire(cmd.Table)
	} else {
		t, err := reg.Lookup(cmd.Table)
		if err != nil {
			return nil, err
		}
		table = t
	}
	op, err := workload.NewOperation(kind, table, cmd.Count)
	if err != nil {
		return nil, err
	}
	logging.CommandDebug("resolved %s [%s] on %s", op, op.ShortID(), table.URI())
	return op, nil
}
