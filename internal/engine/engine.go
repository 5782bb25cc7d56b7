// Package engine is the storage engine the workload runs against: SQLite,
// reached through either the cgo bindings to the C library or the pure-Go
// translation, behind a table-oriented interface.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"wtmt/internal/codec"
)

var (
	// ErrDriverUnavailable is returned when the configured driver was not compiled in.
	ErrDriverUnavailable = errors.New("engine driver unavailable")
	// ErrInvalidTableName is returned for names that are not safe SQL identifiers.
	ErrInvalidTableName = errors.New("invalid table name")
	// ErrTableNotFound is returned when the engine has no table with the given name.
	ErrTableNotFound = errors.New("table not found")
)

// Engine is the set of calls the executor makes against storage.
type Engine interface {
	// CreateTable creates the table if it does not exist.
	CreateTable(ctx context.Context, name string) error
	// Insert writes one fresh row per key and returns the number written.
	Insert(ctx context.Context, name string, keys []int64) (int, error)
	// Update rewrites up to limit rows with keys greater than after, in key order.
	// It returns the number rewritten and the last key touched.
	Update(ctx context.Context, name string, after int64, limit int) (int, int64, error)
	// Delete removes up to limit rows with the lowest keys and returns the number removed.
	Delete(ctx context.Context, name string, limit int) (int, error)
	// Drop removes the table.
	Drop(ctx context.Context, name string) error
	// Count returns the number of rows.
	Count(ctx context.Context, name string) (int64, error)
	// Tables describes every workload table in the database.
	Tables(ctx context.Context) ([]TableInfo, error)
	// Verify decodes up to limit rows (all if limit <= 0) and checks their checksums.
	Verify(ctx context.Context, name string, limit int) (VerifyResult, error)
	// Stats returns the engine's telemetry counters.
	Stats() *Statistics
	Close() error
}

// TableInfo describes a stored table.
type TableInfo struct {
	Name    string
	Entries int64
	MaxKey  int64
}

// VerifyResult summarizes a Verify pass.
type VerifyResult struct {
	Checked     int
	Corrupt     int
	FirstBadKey int64
}

// Options configures Open.
type Options struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver      string
	Path        string
	Compression codec.Type
	ValueSize   int
	BusyTimeout time.Duration
}

// knownDrivers are the database/sql driver names wtmt can use.
var knownDrivers = []string{"sqlite", "sqlite3"}

// Drivers lists the known drivers compiled into this binary.
func Drivers() []string {
	registered := make(map[string]bool)
	for _, d := range sql.Drivers() {
		registered[d] = true
	}
	var out []string
	for _, d := range knownDrivers {
		if registered[d] {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Available reports whether driver is compiled into this binary.
func Available(driver string) bool {
	for _, d := range Drivers() {
		if d == driver {
			return true
		}
	}
	return false
}

// DriverDescription explains what backs a driver name.
func DriverDescription(driver string) string {
	switch driver {
	case "sqlite":
		return "pure Go (modernc.org/sqlite)"
	case "sqlite3":
		return "native C library via cgo (github.com/mattn/go-sqlite3)"
	default:
		return "unknown"
	}
}

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]{0,63}$`)

// quoteTable validates name and returns it as a quoted SQL identifier.
func quoteTable(name string) (string, error) {
	if !tableNameRE.MatchString(name) || strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return "", ErrInvalidTableName
	}
	return `"` + name + `"`, nil
}
