package database

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// rewrittenDeclTypes are the declared column types for which the sqlite3
// driver replaces the stored value on read: date and time types become
// time.Time and BOOLEAN becomes bool. Matching is on the lower-cased
// declaration, exactly as the driver does it.
var rewrittenDeclTypes = map[string]bool{
	"date":      true,
	"datetime":  true,
	"timestamp": true,
	"boolean":   true,
}

// resultShape returns the column names and lower-cased declared types of a
// compiled statement. Opening rows does not step the statement, so nothing
// executes.
func resultShape(ctx context.Context, stmt *sqlite3.SQLiteStmt) ([]string, []string, error) {
	args := make([]driver.NamedValue, stmt.NumInput())
	for i := range args {
		args[i].Ordinal = i + 1
	}
	rows, err := stmt.QueryContext(ctx, args)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close() //nolint:errcheck // Close only resets the statement

	sr, ok := rows.(*sqlite3.SQLiteRows)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected driver rows %T", rows)
	}
	return sr.Columns(), sr.DeclTypes(), nil
}

func rewritesValues(declTypes []string) bool {
	for _, dt := range declTypes {
		if rewrittenDeclTypes[dt] {
			return true
		}
	}
	return false
}

// storageClassQuery compiles a variant of native whose result columns carry
// no declared type, so every value reads back in its storage class.
//
// The original text becomes a subquery and each column is selected through
// unary plus, which returns its operand unchanged but drops the declaration.
// Output names are aliased back to the originals. It returns nil when native
// needs no rewrite or cannot be used as a subquery (PRAGMA, RETURNING and the
// like), in which case native is kept as is.
func (db *DB) storageClassQuery(ctx context.Context, native *sqlite3.SQLiteStmt, query string) *sqlite3.SQLiteStmt {
	names, declTypes, err := resultShape(ctx, native)
	if err != nil || !rewritesValues(declTypes) {
		return nil
	}

	// A newline before the closing paren keeps a trailing line comment
	// from swallowing it.
	from := " FROM (\n" + strings.TrimRight(query, " \t\r\n;") + "\n)"

	// SQLite disambiguates duplicate subquery column names itself; read
	// them back instead of guessing.
	star, err := db.compile(ctx, "SELECT *"+from)
	if err != nil {
		return nil
	}
	inner, _, err := resultShape(ctx, star)
	star.Close() //nolint:errcheck // Only its shape was needed
	if err != nil || len(inner) != len(names) {
		return nil
	}

	cols := make([]string, len(names))
	for i := range names {
		in, err := quoteIdent(inner[i])
		if err != nil {
			return nil
		}
		out, err := quoteIdent(names[i])
		if err != nil {
			return nil
		}
		cols[i] = "+" + in + " AS " + out
	}

	wrapped, err := db.compile(ctx, "SELECT "+strings.Join(cols, ", ")+from)
	if err != nil {
		return nil
	}
	if wrapped.NumInput() != native.NumInput() {
		wrapped.Close() //nolint:errcheck // Discarded
		return nil
	}
	return wrapped
}

// compile prepares query on the current connection.
func (db *DB) compile(ctx context.Context, query string) (*sqlite3.SQLiteStmt, error) {
	ds, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	native, ok := ds.(*sqlite3.SQLiteStmt)
	if !ok {
		ds.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("unexpected driver statement %T", ds)
	}
	return native, nil
}
