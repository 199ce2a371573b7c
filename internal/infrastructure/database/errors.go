package database

import (
	"errors"
	"fmt"
)

// Error kinds returned by the gateway.
//
// Every failing public operation returns an error that matches exactly one of
// ErrConnection or ErrQuery under errors.Is. The native diagnostic, when there
// is one, stays in the chain and can be reached with errors.As:
//
//	var sqliteErr sqlite3.Error
//	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
//	    // handle constraint violation
//	}
var (
	// ErrConnection is returned when the store cannot be opened or an
	// operation needs an open connection and there is none.
	ErrConnection = errors.New("database: connection error")

	// ErrQuery is returned when SQL fails to compile, a bind index is out of
	// range, or the store reports a failure while executing.
	ErrQuery = errors.New("database: query error")

	// ErrNotOpen is returned by operations attempted on a closed handle.
	ErrNotOpen = fmt.Errorf("%w: database not open", ErrConnection)

	// ErrStatementClosed is returned when a statement is used after Close,
	// after its database was closed, or after the database was reopened.
	ErrStatementClosed = fmt.Errorf("%w: statement closed", ErrConnection)

	// ErrTxDone is returned by Commit or Rollback on a guard that has
	// already been committed or rolled back.
	ErrTxDone = errors.New("database: transaction already finished")
)

// queryError wraps a native failure as an ErrQuery with context.
func queryError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQuery, op, err)
}

// connectionError wraps a native failure as an ErrConnection with context.
func connectionError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConnection, op, err)
}
