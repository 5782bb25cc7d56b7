package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wtmt/internal/codec"
	"wtmt/internal/logging"
)

// SQLEngine implements Engine on a SQLite database.
type SQLEngine struct {
	db    *sql.DB
	opts  Options
	stats Statistics
}

// Open opens (creating if needed) the database described by opts.
func Open(opts Options) (*SQLEngine, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "engine.Open")
	defer timer.Stop()

	if !Available(opts.Driver) {
		return nil, fmt.Errorf("%w: %q (compiled in: %v)", ErrDriverUnavailable, opts.Driver, Drivers())
	}
	if !opts.Compression.Valid() {
		return nil, fmt.Errorf("%w: %s", codec.ErrUnknownType, opts.Compression)
	}
	if opts.ValueSize <= 0 {
		return nil, fmt.Errorf("value size must be positive, got %d", opts.ValueSize)
	}

	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	logging.Engine("opening %s with driver %s (%s)", opts.Path, opts.Driver, DriverDescription(opts.Driver))
	db, err := sql.Open(opts.Driver, opts.Path)
	if err != nil {
		logging.EngineError("failed to open database at %s: %v", opts.Path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: pragmas below are per-connection and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if opts.BusyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds())); err != nil {
			logging.EngineDebug("failed to set busy_timeout: %v", err)
		}
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.EngineDebug("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.EngineDebug("failed to set synchronous=NORMAL: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLEngine{db: db, opts: opts}, nil
}

// Options returns the options the engine was opened with.
func (e *SQLEngine) Options() Options { return e.opts }

// Stats returns the engine's telemetry counters.
func (e *SQLEngine) Stats() *Statistics { return &e.stats }

// Close closes the database.
func (e *SQLEngine) Close() error {
	logging.Engine("closing %s", e.opts.Path)
	return e.db.Close()
}

// fail records an error ticker and normalizes missing-table errors. A canceled
// context is not an engine error and is not counted.
func (e *SQLEngine) fail(op, name string, err error) error {
	if !errors.Is(err, context.Canceled) {
		e.stats.Record(TickerErrors, 1)
	}
	if strings.Contains(err.Error(), "no such table") {
		err = fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	logging.EngineWarn("%s %s: %v", op, name, err)
	return fmt.Errorf("%s %s: %w", op, name, err)
}

// CreateTable creates the table if it does not exist.
func (e *SQLEngine) CreateTable(ctx context.Context, name string) error {
	table, err := quoteTable(name)
	if err != nil {
		return fmt.Errorf("create %q: %w", name, err)
	}
	_, err = e.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
		k INTEGER PRIMARY KEY,
		v BLOB NOT NULL,
		codec INTEGER NOT NULL,
		sum INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return e.fail("create", name, err)
	}
	return nil
}

// Insert writes one fresh row per key in a single transaction.
func (e *SQLEngine) Insert(ctx context.Context, name string, keys []int64) (int, error) {
	table, err := quoteTable(name)
	if err != nil {
		return 0, fmt.Errorf("insert %q: %w", name, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, e.fail("insert", name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (k, v, codec, sum, version) VALUES (?, ?, ?, ?, 0)`)
	if err != nil {
		return 0, e.fail("insert", name, err)
	}
	defer stmt.Close()

	var raw, stored uint64
	for _, k := range keys {
		val, err := encodeValue(e.opts.Compression, k, 0, e.opts.ValueSize)
		if err != nil {
			return 0, e.fail("insert", name, err)
		}
		if _, err := stmt.ExecContext(ctx, k, val.data, int(val.codec), int64(val.sum)); err != nil {
			return 0, e.fail("insert", name, err)
		}
		raw += uint64(val.raw)
		stored += uint64(len(val.data))
	}
	if err := tx.Commit(); err != nil {
		return 0, e.fail("insert", name, err)
	}

	e.stats.Record(TickerKeysInserted, uint64(len(keys)))
	e.stats.Record(TickerBytesWritten, raw)
	e.stats.Record(TickerBytesStored, stored)
	e.stats.Record(TickerBatches, 1)
	logging.EngineDebug("inserted %d rows into %s", len(keys), name)
	return len(keys), nil
}

// Update rewrites up to limit rows with keys greater than after, bumping their version.
func (e *SQLEngine) Update(ctx context.Context, name string, after int64, limit int) (int, int64, error) {
	table, err := quoteTable(name)
	if err != nil {
		return 0, after, fmt.Errorf("update %q: %w", name, err)
	}
	if limit <= 0 {
		return 0, after, nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, after, e.fail("update", name, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT k, version FROM `+table+` WHERE k > ? ORDER BY k LIMIT ?`, after, limit)
	if err != nil {
		return 0, after, e.fail("update", name, err)
	}
	type target struct{ key, version int64 }
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.key, &t.version); err != nil {
			rows.Close()
			return 0, after, e.fail("update", name, err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, after, e.fail("update", name, err)
	}
	rows.Close()

	if len(targets) == 0 {
		return 0, after, nil
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE `+table+` SET v = ?, codec = ?, sum = ?, version = ? WHERE k = ?`)
	if err != nil {
		return 0, after, e.fail("update", name, err)
	}
	defer stmt.Close()

	var raw, stored uint64
	for _, t := range targets {
		val, err := encodeValue(e.opts.Compression, t.key, t.version+1, e.opts.ValueSize)
		if err != nil {
			return 0, after, e.fail("update", name, err)
		}
		if _, err := stmt.ExecContext(ctx, val.data, int(val.codec), int64(val.sum), t.version+1, t.key); err != nil {
			return 0, after, e.fail("update", name, err)
		}
		raw += uint64(val.raw)
		stored += uint64(len(val.data))
	}
	if err := tx.Commit(); err != nil {
		return 0, after, e.fail("update", name, err)
	}

	e.stats.Record(TickerKeysUpdated, uint64(len(targets)))
	e.stats.Record(TickerBytesWritten, raw)
	e.stats.Record(TickerBytesStored, stored)
	e.stats.Record(TickerBatches, 1)
	return len(targets), targets[len(targets)-1].key, nil
}

// Delete removes up to limit rows with the lowest keys.
func (e *SQLEngine) Delete(ctx context.Context, name string, limit int) (int, error) {
	table, err := quoteTable(name)
	if err != nil {
		return 0, fmt.Errorf("delete %q: %w", name, err)
	}
	if limit <= 0 {
		return 0, nil
	}

	res, err := e.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE k IN (SELECT k FROM `+table+` ORDER BY k LIMIT ?)`, limit)
	if err != nil {
		return 0, e.fail("delete", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, e.fail("delete", name, err)
	}

	e.stats.Record(TickerKeysDeleted, uint64(n))
	e.stats.Record(TickerBatches, 1)
	return int(n), nil
}

// Drop removes the table.
func (e *SQLEngine) Drop(ctx context.Context, name string) error {
	table, err := quoteTable(name)
	if err != nil {
		return fmt.Errorf("drop %q: %w", name, err)
	}
	if _, err := e.db.ExecContext(ctx, `DROP TABLE `+table); err != nil {
		return e.fail("drop", name, err)
	}
	e.stats.Record(TickerTablesDropped, 1)
	logging.Engine("dropped table %s", name)
	return nil
}

// Count returns the number of rows in the table.
func (e *SQLEngine) Count(ctx context.Context, name string) (int64, error) {
	table, err := quoteTable(name)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", name, err)
	}
	var n int64
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, e.fail("count", name, err)
	}
	return n, nil
}

func (e *SQLEngine) maxKey(ctx context.Context, table string) (int64, error) {
	var k int64
	err := e.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(k), 0) FROM `+table).Scan(&k)
	return k, err
}

// Tables describes every workload table in the database.
func (e *SQLEngine) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, e.fail("list", "tables", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, e.fail("list", "tables", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, e.fail("list", "tables", err)
	}
	rows.Close()

	infos := make([]TableInfo, 0, len(names))
	for _, name := range names {
		table, err := quoteTable(name)
		if err != nil {
			continue // not one of ours
		}
		n, err := e.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		mk, err := e.maxKey(ctx, table)
		if err != nil {
			return nil, e.fail("list", name, err)
		}
		infos = append(infos, TableInfo{Name: name, Entries: n, MaxKey: mk})
	}
	return infos, nil
}

// Verify decodes stored rows and checks each against its checksum and the
// payload regenerated from (key, version).
func (e *SQLEngine) Verify(ctx context.Context, name string, limit int) (VerifyResult, error) {
	var res VerifyResult
	table, err := quoteTable(name)
	if err != nil {
		return res, fmt.Errorf("verify %q: %w", name, err)
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := e.db.QueryContext(ctx, `SELECT k, v, codec, sum, version FROM `+table+` ORDER BY k LIMIT ?`, limit)
	if err != nil {
		return res, e.fail("verify", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key, sum, version int64
			typ               int
			data              []byte
		)
		if err := rows.Scan(&key, &data, &typ, &sum, &version); err != nil {
			return res, e.fail("verify", name, err)
		}
		res.Checked++
		if !e.rowValid(key, data, codec.Type(typ), uint64(sum), version) {
			if res.Corrupt == 0 {
				res.FirstBadKey = key
			}
			res.Corrupt++
		}
	}
	if err := rows.Err(); err != nil {
		return res, e.fail("verify", name, err)
	}

	e.stats.Record(TickerKeysVerified, uint64(res.Checked))
	if res.Corrupt > 0 {
		logging.EngineWarn("verify %s: %d/%d rows corrupt, first key %d", name, res.Corrupt, res.Checked, res.FirstBadKey)
	}
	return res, nil
}

func (e *SQLEngine) rowValid(key int64, data []byte, typ codec.Type, sum uint64, version int64) bool {
	raw, err := codec.Decompress(typ, data)
	if err != nil {
		return false
	}
	if codec.Checksum(raw) != sum {
		return false
	}
	// Size is not stored; rows written under a different value_size still verify
	// as long as the payload matches its own generator.
	return string(raw) == string(makePayload(key, version, len(raw)))
}
