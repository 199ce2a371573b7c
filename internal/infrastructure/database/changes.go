package database

import (
	"github.com/mattn/go-sqlite3"
)

// ChangeOp identifies the kind of row modification reported by SQLite.
type ChangeOp int

// Row modification kinds.
const (
	ChangeInsert ChangeOp = sqlite3.SQLITE_INSERT
	ChangeUpdate ChangeOp = sqlite3.SQLITE_UPDATE
	ChangeDelete ChangeOp = sqlite3.SQLITE_DELETE
)

// String returns the lower-case operation name used on the wire.
func (op ChangeOp) String() string {
	switch op {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// RowChange is one committed row modification.
type RowChange struct {
	Op       ChangeOp
	Database string // schema name, "main" for the primary store
	Table    string
	RowID    int64
}

// ChangeListener receives the rows modified by each committed transaction.
//
// OnCommit is called synchronously on the goroutine that made the gateway
// call which committed the changes, after that call has finished with the
// connection. The slice is owned by the listener. OnCommit must not use the
// DB that invoked it.
type ChangeListener interface {
	OnCommit(changes []RowChange)
}

// SetChangeListener attaches l to the handle, or detaches the current
// listener when l is nil. The listener survives Close and Open.
func (db *DB) SetChangeListener(l ChangeListener) {
	db.listener = l
	if db.conn != nil {
		db.installHooks()
	}
}

// changeLog buffers row changes between SQLite's update and commit hooks.
//
// pending holds changes of the transaction in progress; committed holds
// changes whose transaction committed but which have not been dispatched.
type changeLog struct {
	pending   []RowChange
	committed []RowChange
}

func (c *changeLog) record(rc RowChange) {
	c.pending = append(c.pending, rc)
}

func (c *changeLog) commit() {
	c.committed = append(c.committed, c.pending...)
	c.pending = c.pending[:0]
}

func (c *changeLog) rollback() {
	c.pending = c.pending[:0]
}

// mark returns a position that truncate can later rewind to.
func (c *changeLog) mark() int {
	return len(c.pending)
}

// truncate discards pending changes recorded after mark.
func (c *changeLog) truncate(mark int) {
	if mark < len(c.pending) {
		c.pending = c.pending[:mark]
	}
}

// drain returns and clears the committed changes.
func (c *changeLog) drain() []RowChange {
	if len(c.committed) == 0 {
		return nil
	}
	out := c.committed
	c.committed = nil
	return out
}

func (c *changeLog) reset() {
	c.pending = nil
	c.committed = nil
}

// installHooks registers the capture hooks on the current connection when a
// listener is attached and removes them otherwise.
func (db *DB) installHooks() {
	if db.listener == nil {
		db.conn.RegisterUpdateHook(nil)
		db.conn.RegisterCommitHook(nil)
		db.conn.RegisterRollbackHook(nil)
		db.changes.reset()
		return
	}

	db.conn.RegisterUpdateHook(func(op int, dbName, table string, rowid int64) {
		db.changes.record(RowChange{
			Op:       ChangeOp(op),
			Database: dbName,
			Table:    table,
			RowID:    rowid,
		})
	})
	db.conn.RegisterCommitHook(func() int {
		db.changes.commit()
		return 0 // zero lets the commit proceed
	})
	db.conn.RegisterRollbackHook(func() {
		db.changes.rollback()
	})
}

// dispatchChanges delivers committed changes to the listener.
func (db *DB) dispatchChanges() {
	if db.listener == nil {
		return
	}
	if changes := db.changes.drain(); len(changes) > 0 {
		db.listener.OnCommit(changes)
	}
}
