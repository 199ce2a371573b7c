package database

import (
	"context"
	"fmt"
	"strings"
)

// BulkInsert inserts rows into table inside a single transaction and returns
// the number of rows inserted.
//
// Every row must have exactly len(columns) values; widths are checked before
// anything is written. If any row fails the whole batch is rolled back and
// the table is left as it was. An empty rows slice returns 0 without touching
// the store.
func (db *DB) BulkInsert(ctx context.Context, table string, columns []string, rows [][]Value) (int64, error) {
	if db.conn == nil {
		return 0, ErrNotOpen
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("%w: bulk insert into %q: no columns", ErrQuery, table)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("%w: bulk insert into %q: row %d has %d values, want %d",
				ErrQuery, table, i, len(row), len(columns))
		}
	}

	query, err := insertSQL(table, columns)
	if err != nil {
		return 0, err
	}
	return db.BulkExecute(ctx, query, rows)
}

// BulkExecute runs query once per parameter set inside a single transaction
// and returns the summed affected row count. Any failure rolls back every
// set.
func (db *DB) BulkExecute(ctx context.Context, query string, paramSets [][]Value) (int64, error) {
	st, err := db.Prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	defer st.Close() //nolint:errcheck // Finalize failure cannot affect the result

	if len(paramSets) == 0 {
		return 0, nil
	}

	tx, err := db.Transaction(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Release()

	total, err := st.ExecuteBatch(ctx, paramSets)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// BulkSelect runs query once per parameter set inside a single transaction,
// so every set reads the same snapshot, and returns all rows in parameter-set
// order.
func (db *DB) BulkSelect(ctx context.Context, query string, paramSets [][]Value) (Result, error) {
	st, err := db.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck // Finalize failure cannot affect the result

	if len(paramSets) == 0 {
		return Result{}, nil
	}

	tx, err := db.Transaction(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	result, err := st.QueryBatch(ctx, paramSets)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// insertSQL builds a positional INSERT for table and columns.
func insertSQL(table string, columns []string) (string, error) {
	t, err := quoteIdent(table)
	if err != nil {
		return "", err
	}

	cols := make([]string, len(columns))
	for i, c := range columns {
		if cols[i], err = quoteIdent(c); err != nil {
			return "", err
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t, strings.Join(cols, ", "), placeholders), nil
}

// quoteIdent renders name as a double-quoted SQL identifier.
func quoteIdent(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrQuery)
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}
