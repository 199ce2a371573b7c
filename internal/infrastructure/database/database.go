package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for a created database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// defaultBusyTimeout is used when Config.BusyTimeout is not positive (seconds).
	defaultBusyTimeout = 5

	// MemoryPath opens a private, non-persistent store.
	MemoryPath = ":memory:"
)

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Path is the default storage target used by Open.
	// MemoryPath creates an in-memory store that vanishes on Close.
	Path string

	// JournalMode is applied after every successful open when non-empty.
	// One of DELETE, TRUNCATE, PERSIST, MEMORY, WAL, OFF.
	JournalMode string

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// CreateDir creates the parent directory of a file-backed target
	// and restricts the database file to owner read/write.
	CreateDir bool
}

// Logger is the logging surface the gateway needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// DB owns at most one native SQLite connection.
//
// A DB starts closed (see New); Open establishes the connection and may be
// called again to switch targets. Statements and transaction guards created
// from a DB borrow it and must not be used after it is closed.
//
// Thread Safety:
//   - A DB is not safe for concurrent use. Open one DB per goroutine;
//     SQLite's own locking arbitrates between connections.
type DB struct {
	cfg  Config
	path string
	conn *sqlite3.SQLiteConn

	// stmts tracks live statements so Close can finalize them first.
	stmts map[*Statement]struct{}

	savepointSeq int

	changes  changeLog
	listener ChangeListener
	observer Observer
	logger   Logger
}

// New returns a closed handle that will use cfg for every Open.
func New(cfg Config) *DB {
	return &DB{
		cfg:   cfg,
		stmts: make(map[*Statement]struct{}),
	}
}

// Open creates a handle and connects it to cfg.Path.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database.ToDatabase())
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db := New(cfg)
	if err := db.Open(ctx, cfg.Path); err != nil {
		return nil, err
	}
	return db, nil
}

// Open connects the handle to path.
//
// An already open connection is closed first. On failure the handle is left
// closed and the error matches ErrConnection.
func (db *DB) Open(ctx context.Context, path string) error {
	if db.conn != nil {
		if err := db.Close(); err != nil {
			db.warn("closing previous connection", "path", db.path, "error", err)
		}
	}

	if path == "" {
		return fmt.Errorf("%w: empty database path", ErrConnection)
	}

	file := !isMemoryPath(path)
	if file && db.cfg.CreateDir {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return connectionError("creating database directory", err)
		}
	}

	drv := &sqlite3.SQLiteDriver{}
	c, err := drv.Open(buildDSN(path, db.cfg.BusyTimeout))
	if err != nil {
		return connectionError("opening "+path, err)
	}
	conn, ok := c.(*sqlite3.SQLiteConn)
	if !ok {
		c.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("%w: unexpected driver connection %T", ErrConnection, c)
	}

	db.conn = conn
	db.path = path
	db.changes.reset()
	db.installHooks()

	if db.cfg.JournalMode != "" {
		if err := db.SetJournalMode(ctx, db.cfg.JournalMode); err != nil {
			db.Close() //nolint:errcheck // Best effort cleanup on error path
			return fmt.Errorf("%w: configuring journal mode: %v", ErrConnection, err)
		}
	}

	if file && db.cfg.CreateDir {
		// The file may not exist until the first write.
		_ = os.Chmod(path, filePermissions) //nolint:errcheck // Intentional: first run creates file later
	}

	db.debug("database opened", "path", path)
	return nil
}

// Close finalizes every statement created from the current connection and
// releases the connection. Closing a closed handle is a no-op.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	for st := range db.stmts {
		if err := st.finalize(); err != nil {
			db.warn("finalizing statement on close", "sql", st.query, "error", err)
		}
	}
	clear(db.stmts)

	err := db.conn.Close()
	db.conn = nil
	db.changes.reset()
	if err != nil {
		return connectionError("closing database", err)
	}

	db.debug("database closed", "path", db.path)
	return nil
}

// IsOpen reports whether the handle holds a connection.
func (db *DB) IsOpen() bool {
	return db.conn != nil
}

// Path returns the target of the current or most recent connection.
func (db *DB) Path() string {
	return db.path
}

// SetLogger sets a logger for lifecycle and cleanup diagnostics.
func (db *DB) SetLogger(logger Logger) {
	db.logger = logger
}

// Prepare compiles query into a reusable Statement on the current connection.
func (db *DB) Prepare(ctx context.Context, query string) (*Statement, error) {
	if db.conn == nil {
		return nil, ErrNotOpen
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty statement", ErrQuery)
	}

	native, err := db.compile(ctx, query)
	if err != nil {
		return nil, queryError("preparing statement", err)
	}
	if raw := db.storageClassQuery(ctx, native, query); raw != nil {
		native.Close() //nolint:errcheck // Replaced by raw
		native = raw
	}

	st := newStatement(db, native, query)
	db.stmts[st] = struct{}{}
	return st, nil
}

// Execute runs non-parameterised SQL without capturing rows.
// The text may hold several statements separated by semicolons; it is
// intended for DDL and configuration pragmas.
func (db *DB) Execute(ctx context.Context, query string) error {
	if db.conn == nil {
		return ErrNotOpen
	}

	start := time.Now()
	mark := db.changes.mark()
	_, err := db.conn.ExecContext(ctx, query, nil)
	db.observe("execute", query, start, 0, err)
	db.settle(mark, err)
	if err != nil {
		return queryError("executing", err)
	}
	return nil
}

// Query prepares, runs and closes query, returning every row it produced.
func (db *DB) Query(ctx context.Context, query string) (Result, error) {
	st, err := db.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck // Finalize failure cannot affect the result

	return st.Execute(ctx)
}

// BeginTransaction starts a transaction. Prefer Transaction, which
// guarantees the transaction is finished.
func (db *DB) BeginTransaction(ctx context.Context) error {
	return db.control(ctx, "begin", "BEGIN TRANSACTION")
}

// Commit commits the active transaction.
func (db *DB) Commit(ctx context.Context) error {
	return db.control(ctx, "commit", "COMMIT")
}

// Rollback rolls back the active transaction.
func (db *DB) Rollback(ctx context.Context) error {
	return db.control(ctx, "rollback", "ROLLBACK")
}

// InTransaction reports whether the connection is inside an explicit transaction.
func (db *DB) InTransaction() bool {
	return db.conn != nil && !db.conn.AutoCommit()
}

// LastInsertRowID returns the row id assigned by the most recent successful
// INSERT on this connection, or 0 when the handle is closed.
func (db *DB) LastInsertRowID(ctx context.Context) int64 {
	n, err := db.scalarInt(ctx, "SELECT last_insert_rowid()")
	if err != nil {
		return 0
	}
	return n
}

// ChangesCount returns the rows affected by the most recent INSERT, UPDATE
// or DELETE on this connection, or 0 when the handle is closed.
func (db *DB) ChangesCount(ctx context.Context) int64 {
	n, err := db.scalarInt(ctx, "SELECT changes()")
	if err != nil {
		return 0
	}
	return n
}

// TotalChanges returns the rows inserted, updated or deleted since the
// connection opened, or 0 when the handle is closed. Schema statements do
// not count, so the difference across a script is its row total.
func (db *DB) TotalChanges(ctx context.Context) int64 {
	n, err := db.scalarInt(ctx, "SELECT total_changes()")
	if err != nil {
		return 0
	}
	return n
}

// HealthCheck verifies the connection answers a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	if db.conn == nil {
		return ErrNotOpen
	}
	if _, err := db.scalarInt(ctx, "SELECT 1"); err != nil {
		return queryError("database health check failed", err)
	}
	return nil
}

// Version returns the version of the linked SQLite library.
func Version() string {
	v, _, _ := sqlite3.Version()
	return v
}

// control executes a transaction-control statement.
func (db *DB) control(ctx context.Context, op, query string) error {
	if db.conn == nil {
		return ErrNotOpen
	}

	start := time.Now()
	mark := db.changes.mark()
	_, err := db.conn.ExecContext(ctx, query, nil)
	db.observe(op, query, start, 0, err)
	db.settle(mark, err)
	if err != nil {
		return queryError(op, err)
	}
	return nil
}

// scalarInt runs an internal single-value query that yields an integer.
func (db *DB) scalarInt(ctx context.Context, query string) (int64, error) {
	v, err := db.scalar(ctx, query)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected %T from %q", v, query)
	}
	return n, nil
}

// scalar runs an internal single-value query without observation.
func (db *DB) scalar(ctx context.Context, query string) (driver.Value, error) {
	if db.conn == nil {
		return nil, ErrNotOpen
	}

	rows, err := db.conn.QueryContext(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	dest := make([]driver.Value, len(rows.Columns()))
	if err := rows.Next(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no rows from %q", query)
		}
		return nil, err
	}
	return dest[0], nil
}

// settle discards change records of a failed call and delivers committed ones.
func (db *DB) settle(mark int, err error) {
	if err != nil {
		db.changes.truncate(mark)
	}
	db.dispatchChanges()
}

func (db *DB) debug(msg string, args ...any) {
	if db.logger != nil {
		db.logger.Debug(msg, args...)
	}
}

func (db *DB) warn(msg string, args ...any) {
	if db.logger != nil {
		db.logger.Warn(msg, args...)
	}
}

// buildDSN builds a go-sqlite3 connection string.
// See: https://github.com/mattn/go-sqlite3#connection-string
func buildDSN(path string, busyTimeout int) string {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on", busyTimeout*msPerSecond)

	if !strings.HasPrefix(path, "file:") {
		return "file:" + path + "?" + params
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// isMemoryPath reports whether path names an in-memory store.
func isMemoryPath(path string) bool {
	return path == MemoryPath ||
		strings.HasPrefix(path, "file::memory:") ||
		strings.Contains(path, "mode=memory")
}
