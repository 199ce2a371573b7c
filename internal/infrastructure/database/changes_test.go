package database

import (
	"context"
	"testing"
)

// recordingListener collects every OnCommit call.
type recordingListener struct {
	batches [][]RowChange
}

func (l *recordingListener) OnCommit(changes []RowChange) {
	l.batches = append(l.batches, changes)
}

func (l *recordingListener) all() []RowChange {
	var out []RowChange
	for _, b := range l.batches {
		out = append(out, b...)
	}
	return out
}

// TestChangeOpString verifies wire names.
func TestChangeOpString(t *testing.T) {
	tests := []struct {
		op   ChangeOp
		want string
	}{
		{ChangeInsert, "insert"},
		{ChangeUpdate, "update"},
		{ChangeDelete, "delete"},
		{ChangeOp(0), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("ChangeOp(%d).String() = %q, want %q", int(tt.op), got, tt.want)
		}
	}
}

// TestChangeListener verifies only committed changes are delivered.
func TestChangeListener(t *testing.T) {
	ctx := context.Background()

	t.Run("autocommit statement", func(t *testing.T) {
		db := openTxTestDB(t)
		defer db.Close() //nolint:errcheck // Test cleanup

		l := &recordingListener{}
		db.SetChangeListener(l)

		if err := db.Execute(ctx, "INSERT INTO t (v) VALUES ('a')"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}

		if len(l.batches) != 1 {
			t.Fatalf("got %d batches, want 1", len(l.batches))
		}
		want := RowChange{Op: ChangeInsert, Database: "main", Table: "t", RowID: 1}
		if got := l.batches[0]; len(got) != 1 || got[0] != want {
			t.Errorf("batch = %+v, want [%+v]", got, want)
		}
	})

	t.Run("transaction delivered once on commit", func(t *testing.T) {
		db := openTxTestDB(t)
		defer db.Close() //nolint:errcheck // Test cleanup

		l := &recordingListener{}
		db.SetChangeListener(l)

		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			if err := db.Execute(ctx, "INSERT INTO t (v) VALUES ('a'), ('b')"); err != nil {
				return err
			}
			if len(l.batches) != 0 {
				t.Error("changes delivered before commit")
			}
			return db.Execute(ctx, "UPDATE t SET v = 'z' WHERE id = 1")
		})
		if err != nil {
			t.Fatalf("WithTransaction() error = %v", err)
		}

		if len(l.batches) != 1 {
			t.Fatalf("got %d batches, want 1", len(l.batches))
		}
		ops := []ChangeOp{ChangeInsert, ChangeInsert, ChangeUpdate}
		got := l.batches[0]
		if len(got) != len(ops) {
			t.Fatalf("batch has %d changes, want %d", len(got), len(ops))
		}
		for i, op := range ops {
			if got[i].Op != op {
				t.Errorf("change %d op = %v, want %v", i, got[i].Op, op)
			}
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		db := openTxTestDB(t)
		defer db.Close() //nolint:errcheck // Test cleanup

		l := &recordingListener{}
		db.SetChangeListener(l)

		tx, err := db.Transaction(ctx)
		if err != nil {
			t.Fatalf("Transaction() error = %v", err)
		}
		if err := db.Execute(ctx, "INSERT INTO t (v) VALUES ('a')"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		tx.Release()

		if len(l.batches) != 0 {
			t.Errorf("got %d batches after rollback, want 0", len(l.batches))
		}
	})

	t.Run("savepoint rollback discards inner changes", func(t *testing.T) {
		db := openTxTestDB(t)
		defer db.Close() //nolint:errcheck // Test cleanup

		l := &recordingListener{}
		db.SetChangeListener(l)

		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			if err := db.Execute(ctx, "INSERT INTO t (v) VALUES ('kept')"); err != nil {
				return err
			}
			inner, err := db.Transaction(ctx)
			if err != nil {
				return err
			}
			if err := db.Execute(ctx, "INSERT INTO t (v) VALUES ('dropped')"); err != nil {
				return err
			}
			return inner.Rollback(ctx)
		})
		if err != nil {
			t.Fatalf("WithTransaction() error = %v", err)
		}

		got := l.all()
		if len(got) != 1 || got[0].RowID != 1 {
			t.Errorf("changes = %+v, want only row 1", got)
		}
	})

	t.Run("failed bulk insert delivers nothing", func(t *testing.T) {
		db := openTxTestDB(t)
		defer db.Close() //nolint:errcheck // Test cleanup

		l := &recordingListener{}
		db.SetChangeListener(l)

		_, err := db.BulkInsert(ctx, "t", []string{"v"}, [][]Value{{Text("a")}, {Text("a")}})
		if err == nil {
			t.Fatal("BulkInsert() error = nil, want UNIQUE violation")
		}
		if len(l.batches) != 0 {
			t.Errorf("got %d batches after failed bulk insert, want 0", len(l.batches))
		}
	})

	t.Run("detached listener", func(t *testing.T) {
		db := openTxTestDB(t)
		defer db.Close() //nolint:errcheck // Test cleanup

		l := &recordingListener{}
		db.SetChangeListener(l)
		db.SetChangeListener(nil)

		if err := db.Execute(ctx, "INSERT INTO t (v) VALUES ('a')"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if len(l.batches) != 0 {
			t.Errorf("detached listener got %d batches", len(l.batches))
		}
	})

	t.Run("listener survives reopen", func(t *testing.T) {
		db := New(Config{})
		l := &recordingListener{}
		db.SetChangeListener(l)

		if err := db.Open(ctx, MemoryPath); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if err := db.Execute(ctx, "CREATE TABLE r (x); INSERT INTO r VALUES (1)"); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := l.all(); len(got) != 1 || got[0].Table != "r" {
			t.Errorf("changes = %+v, want one change on r", got)
		}
	})
}

// TestChangeLog verifies buffer bookkeeping.
func TestChangeLog(t *testing.T) {
	var c changeLog

	c.record(RowChange{RowID: 1})
	m := c.mark()
	c.record(RowChange{RowID: 2})
	c.record(RowChange{RowID: 3})
	c.truncate(m)
	c.commit()

	got := c.drain()
	if len(got) != 1 || got[0].RowID != 1 {
		t.Errorf("drain() = %+v, want row 1 only", got)
	}
	if c.drain() != nil {
		t.Error("second drain() returned changes")
	}

	c.record(RowChange{RowID: 4})
	c.rollback()
	c.commit()
	if got := c.drain(); got != nil {
		t.Errorf("drain() after rollback = %+v, want nil", got)
	}
}
