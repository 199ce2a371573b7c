package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// journalModes are the values SetJournalMode accepts.
var journalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}

// EnableForeignKeys turns foreign key enforcement on or off for the
// connection. SQLite ignores the change while a transaction is open.
//
// Every Open enables enforcement.
func (db *DB) EnableForeignKeys(ctx context.Context, enabled bool) error {
	value := "OFF"
	if enabled {
		value = "ON"
	}
	return db.pragma(ctx, "PRAGMA foreign_keys = "+value)
}

// ForeignKeysEnabled reports whether foreign key enforcement is on.
func (db *DB) ForeignKeysEnabled(ctx context.Context) (bool, error) {
	if db.conn == nil {
		return false, ErrNotOpen
	}
	n, err := db.scalarInt(ctx, "PRAGMA foreign_keys")
	if err != nil {
		return false, queryError("reading foreign_keys", err)
	}
	return n == 1, nil
}

// SetJournalMode sets the journal mode. mode is case-insensitive and must be
// one of DELETE, TRUNCATE, PERSIST, MEMORY, WAL or OFF.
//
// In-memory stores only support MEMORY and OFF; SQLite keeps MEMORY when
// asked for anything else, so read the result back with JournalMode.
func (db *DB) SetJournalMode(ctx context.Context, mode string) error {
	mode = strings.ToUpper(strings.TrimSpace(mode))
	if !slices.Contains(journalModes, mode) {
		return fmt.Errorf("%w: invalid journal mode %q", ErrQuery, mode)
	}
	return db.pragma(ctx, "PRAGMA journal_mode = "+mode)
}

// JournalMode returns the current journal mode in upper case.
func (db *DB) JournalMode(ctx context.Context) (string, error) {
	if db.conn == nil {
		return "", ErrNotOpen
	}
	v, err := db.scalar(ctx, "PRAGMA journal_mode")
	if err != nil {
		return "", queryError("reading journal_mode", err)
	}
	mode, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected journal_mode value %T", ErrQuery, v)
	}
	return strings.ToUpper(mode), nil
}

func (db *DB) pragma(ctx context.Context, query string) error {
	if db.conn == nil {
		return ErrNotOpen
	}

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query, nil)
	db.observe("pragma", query, start, 0, err)
	if err != nil {
		return queryError("pragma", err)
	}
	return nil
}
