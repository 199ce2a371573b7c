package database

import (
	"time"
)

// StatementEvent describes one statement run through the gateway.
type StatementEvent struct {
	// Op is the gateway operation: execute, query, insert, update, begin,
	// commit, rollback, savepoint, release or pragma.
	Op string

	SQL      string
	Duration time.Duration

	// Rows is the number of rows returned (query) or affected (insert, update).
	Rows int64

	// Err is the failure, nil on success.
	Err error
}

// Observer receives an event after every statement the gateway runs.
// ObserveStatement is called synchronously and should not block.
type Observer interface {
	ObserveStatement(ev StatementEvent)
}

// SetObserver attaches o to the handle. A nil observer disables events.
func (db *DB) SetObserver(o Observer) {
	db.observer = o
}

func (db *DB) observe(op, query string, start time.Time, rows int64, err error) {
	if db.observer == nil {
		return
	}
	db.observer.ObserveStatement(StatementEvent{
		Op:       op,
		SQL:      query,
		Duration: time.Since(start),
		Rows:     rows,
		Err:      err,
	})
}
