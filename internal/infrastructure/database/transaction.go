package database

import (
	"context"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// TxState is the lifecycle position of a TxGuard.
type TxState int

// Guard states. A guard only moves out of TxStarted, and only once.
const (
	TxStarted TxState = iota
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxStarted:
		return "started"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("TxState(%d)", int(s))
	}
}

// TxGuard scopes one transaction on a DB.
//
// A guard that is neither committed nor rolled back is rolled back by
// Release, which is meant to be deferred:
//
//	tx, err := db.Transaction(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Release()
//
//	// ... statements ...
//
//	return tx.Commit(ctx)
//
// When the DB is already inside a transaction the guard uses a SAVEPOINT,
// so guards nest: an inner rollback undoes only the inner work, and nothing
// is durable until the outermost transaction commits.
type TxGuard struct {
	db        *DB
	conn      *sqlite3.SQLiteConn
	savepoint string
	mark      int
	state     TxState
}

// Transaction begins a transaction and returns its guard.
func (db *DB) Transaction(ctx context.Context) (*TxGuard, error) {
	if db.conn == nil {
		return nil, ErrNotOpen
	}

	g := &TxGuard{
		db:   db,
		conn: db.conn,
		mark: db.changes.mark(),
	}

	if db.InTransaction() {
		db.savepointSeq++
		g.savepoint = fmt.Sprintf("sqlgw_sp_%d", db.savepointSeq)
		if err := db.control(ctx, "savepoint", "SAVEPOINT "+g.savepoint); err != nil {
			return nil, err
		}
		return g, nil
	}

	if err := db.BeginTransaction(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// State returns the guard's current state.
func (g *TxGuard) State() TxState {
	return g.state
}

// Commit makes the guarded work permanent (or, for a nested guard, merges
// it into the enclosing transaction).
//
// A failed COMMIT leaves the guard started so Release still rolls back,
// unless SQLite has already ended the transaction itself.
func (g *TxGuard) Commit(ctx context.Context) error {
	if g.state != TxStarted {
		return ErrTxDone
	}
	if err := g.checkConn(); err != nil {
		return err
	}

	var err error
	if g.savepoint != "" {
		err = g.db.control(ctx, "release", "RELEASE SAVEPOINT "+g.savepoint)
	} else {
		err = g.db.Commit(ctx)
	}
	if err != nil {
		if g.savepoint == "" && !g.db.InTransaction() {
			g.state = TxRolledBack
		}
		return err
	}

	g.state = TxCommitted
	return nil
}

// Rollback discards the guarded work.
func (g *TxGuard) Rollback(ctx context.Context) error {
	if g.state != TxStarted {
		return ErrTxDone
	}
	if err := g.checkConn(); err != nil {
		return err
	}
	g.state = TxRolledBack

	if g.savepoint != "" {
		query := fmt.Sprintf("ROLLBACK TO SAVEPOINT %[1]s; RELEASE SAVEPOINT %[1]s", g.savepoint)
		if err := g.db.control(ctx, "rollback", query); err != nil {
			return err
		}
		// ROLLBACK TO does not fire the rollback hook.
		g.db.changes.truncate(g.mark)
		return nil
	}

	if !g.db.InTransaction() {
		// SQLite already rolled back, e.g. after SQLITE_FULL or an interrupt.
		return nil
	}
	return g.db.Rollback(ctx)
}

// Release rolls back a guard that is still started. Errors are logged and
// discarded. Release is a no-op on a finished guard.
func (g *TxGuard) Release() {
	if g.state != TxStarted {
		return
	}
	if err := g.Rollback(context.Background()); err != nil {
		g.db.warn("transaction rollback on release failed", "savepoint", g.savepoint, "error", err)
	}
}

// checkConn fails a guard whose DB was closed or reopened underneath it.
func (g *TxGuard) checkConn() error {
	if g.db.conn == nil || g.db.conn != g.conn {
		g.state = TxRolledBack
		return fmt.Errorf("%w: transaction connection closed", ErrConnection)
	}
	return nil
}

// WithTransaction runs fn inside a guard and commits when fn returns nil.
// The transaction is rolled back when fn returns an error or panics; a panic
// is propagated after the rollback.
//
// Usage:
//
//	err := db.WithTransaction(ctx, func(ctx context.Context) error {
//	    if err := db.Execute(ctx, "DELETE FROM t"); err != nil {
//	        return err
//	    }
//	    _, err := db.BulkInsert(ctx, "t", cols, rows)
//	    return err
//	})
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.Transaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Release()

	if err := fn(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
