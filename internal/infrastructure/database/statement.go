package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Statement is one compiled query on the connection that prepared it.
//
// A Statement is reusable: bind, execute, Reset, bind again. It borrows its
// DB and becomes unusable (ErrStatementClosed) once the DB is closed or
// reopened. Close releases the compiled query; DB.Close does so for any
// statement still open.
//
// Binds are separate calls rather than a chain; BindAll binds a whole
// parameter list positionally in one call.
//
// Values read back in their storage class whatever the column's declared
// type. A SELECT whose columns are declared DATE, DATETIME, TIMESTAMP or
// BOOLEAN is compiled as a subquery so the driver sees no declaration.
type Statement struct {
	db    *DB
	conn  *sqlite3.SQLiteConn
	stmt  *sqlite3.SQLiteStmt
	query string

	// params holds one slot per placeholder; unbound slots execute as NULL.
	params  []driver.NamedValue
	columns []string
	closed  bool
}

func newStatement(db *DB, stmt *sqlite3.SQLiteStmt, query string) *Statement {
	params := make([]driver.NamedValue, stmt.NumInput())
	for i := range params {
		params[i].Ordinal = i + 1
	}
	return &Statement{
		db:     db,
		conn:   db.conn,
		stmt:   stmt,
		query:  query,
		params: params,
	}
}

// SQL returns the text the statement was compiled from.
func (s *Statement) SQL() string {
	return s.query
}

// NumParams returns the number of bindable parameters.
func (s *Statement) NumParams() int {
	return len(s.params)
}

// Columns returns the column names of the most recent Execute.
func (s *Statement) Columns() []string {
	return s.columns
}

// Bind sets parameter index (1-based) to v.
func (s *Statement) Bind(index int, v Value) error {
	if err := s.check(); err != nil {
		return err
	}
	if index < 1 || index > len(s.params) {
		return fmt.Errorf("%w: bind index %d out of range [1, %d]", ErrQuery, index, len(s.params))
	}

	dv, err := toDriver(v)
	if err != nil {
		return queryError(fmt.Sprintf("binding parameter %d", index), err)
	}
	s.params[index-1].Value = dv
	return nil
}

// BindNull sets parameter index to NULL.
func (s *Statement) BindNull(index int) error {
	return s.Bind(index, Null{})
}

// BindInt64 sets parameter index to an integer.
func (s *Statement) BindInt64(index int, v int64) error {
	return s.Bind(index, Integer(v))
}

// BindFloat64 sets parameter index to a float.
func (s *Statement) BindFloat64(index int, v float64) error {
	return s.Bind(index, Float(v))
}

// BindText sets parameter index to text.
func (s *Statement) BindText(index int, v string) error {
	return s.Bind(index, Text(v))
}

// BindBlob sets parameter index to a blob. The bytes are copied.
func (s *Statement) BindBlob(index int, v []byte) error {
	return s.Bind(index, Blob(v))
}

// BindAll binds values to parameters 1..len(values) in order, so
// st.BindAll(Integer(1), Text("a")) replaces Bind(1, ...) then Bind(2, ...).
// Parameters past len(values) keep their current binding.
func (s *Statement) BindAll(values ...Value) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(values) > len(s.params) {
		return fmt.Errorf("%w: %d values for %d parameters", ErrQuery, len(values), len(s.params))
	}
	for i, v := range values {
		if err := s.Bind(i+1, v); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the statement to completion and returns every row produced.
// Statements that produce no rows return an empty Result.
func (s *Statement) Execute(ctx context.Context) (Result, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	start := time.Now()
	mark := s.db.changes.mark()
	result, err := s.collect(ctx)
	s.db.observe("query", s.query, start, int64(len(result)), err)
	s.db.settle(mark, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteInsert runs the statement once and returns the row id the store
// assigned to the inserted row.
func (s *Statement) ExecuteInsert(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, "insert")
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, queryError("insert", err)
	}
	return id, nil
}

// ExecuteUpdate runs the statement once and returns the number of rows it
// inserted, updated or deleted.
func (s *Statement) ExecuteUpdate(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, "update")
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, queryError("update", err)
	}
	return n, nil
}

// Reset clears every bound value so the statement can be bound and run
// again. The query is not recompiled.
func (s *Statement) Reset() {
	for i := range s.params {
		s.params[i].Value = nil
	}
}

// ExecuteBatch runs the statement once per parameter set, resetting and
// binding positionally before each run, and returns the summed affected
// row count. The first failure stops the batch; the caller decides whether
// to roll back.
func (s *Statement) ExecuteBatch(ctx context.Context, paramSets [][]Value) (int64, error) {
	var total int64
	for i, params := range paramSets {
		s.Reset()
		if err := s.BindAll(params...); err != nil {
			return 0, fmt.Errorf("parameter set %d: %w", i, err)
		}
		n, err := s.ExecuteUpdate(ctx)
		if err != nil {
			return 0, fmt.Errorf("parameter set %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

// QueryBatch runs the statement once per parameter set and concatenates the
// rows in parameter-set order.
func (s *Statement) QueryBatch(ctx context.Context, paramSets [][]Value) (Result, error) {
	var combined Result
	for i, params := range paramSets {
		s.Reset()
		if err := s.BindAll(params...); err != nil {
			return nil, fmt.Errorf("parameter set %d: %w", i, err)
		}
		rows, err := s.Execute(ctx)
		if err != nil {
			return nil, fmt.Errorf("parameter set %d: %w", i, err)
		}
		combined = append(combined, rows...)
	}
	return combined, nil
}

// Close finalizes the compiled query. Further calls are no-ops.
func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	delete(s.db.stmts, s)
	return s.finalize()
}

// finalize releases the native statement exactly once.
func (s *Statement) finalize() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db.conn != s.conn {
		// The connection is gone and took the statement with it.
		return nil
	}
	if err := s.stmt.Close(); err != nil {
		return queryError("finalizing statement", err)
	}
	return nil
}

// check rejects use after Close or after the owning connection changed.
func (s *Statement) check() error {
	if s.closed || s.db.conn == nil || s.db.conn != s.conn {
		return ErrStatementClosed
	}
	return nil
}

// exec steps the statement once for a mutating call.
func (s *Statement) exec(ctx context.Context, op string) (driver.Result, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	start := time.Now()
	mark := s.db.changes.mark()
	res, err := s.stmt.ExecContext(ctx, s.params)
	var affected int64
	if err == nil {
		affected, _ = res.RowsAffected() //nolint:errcheck // SQLiteResult never fails
	}
	s.db.observe(op, s.query, start, affected, err)
	s.db.settle(mark, err)
	if err != nil {
		return nil, queryError(op, err)
	}
	return res, nil
}

// collect steps the statement until done, converting each row.
func (s *Statement) collect(ctx context.Context) (Result, error) {
	rows, err := s.stmt.QueryContext(ctx, s.params)
	if err != nil {
		return nil, queryError("query", err)
	}
	defer rows.Close() //nolint:errcheck // Close only resets the statement

	s.columns = rows.Columns()

	// Statements Prepare could not recompile (RETURNING and the like) still
	// carry declared types. The driver converts by the slice DeclTypes
	// hands out, so clearing it leaves every value in its storage class.
	if sr, ok := rows.(*sqlite3.SQLiteRows); ok {
		dt := sr.DeclTypes()
		for i := range dt {
			dt[i] = ""
		}
	}
	dest := make([]driver.Value, len(s.columns))

	var result Result
	for {
		if err := rows.Next(dest); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, queryError("query", err)
		}

		row := make(Row, len(dest))
		for i, v := range dest {
			val, err := fromDriver(v)
			if err != nil {
				return nil, queryError(fmt.Sprintf("reading column %d", i), err)
			}
			row[i] = val
		}
		result = append(result, row)
	}
	return result, nil
}
