// Package database is the sqlgw access gateway to an embedded SQLite store.
//
// This package manages:
//   - One owned SQLite connection per DB, opened onto a file or :memory:
//   - Compiled, reusable statements with 1-based positional binding
//   - Scoped transactions (TxGuard) that roll back unless committed
//   - Bulk insert, execute and select inside a single transaction
//   - Capture of committed row changes for a ChangeListener
//   - Per-statement events for an Observer
//
// Values:
//
// Every value crossing the gateway is one of the five SQLite storage
// classes: Null, Integer, Float, Text or Blob. Results are a Result of Rows
// in the order the store produced them. The gateway never converts between
// classes: a value reads back in the class it was stored with, whatever the
// column's declared type, so an Integer in a TIMESTAMP column stays an
// Integer and 5 in a BOOLEAN column stays 5.
//
// Errors:
//
// Failures match ErrConnection (no usable connection) or ErrQuery (compile,
// bind or execution failure) under errors.Is. The underlying sqlite3.Error
// stays reachable with errors.As.
//
// Thread Safety:
//
// A DB and everything created from it belong to one goroutine. Use one DB per
// goroutine; SQLite's file locking and the busy timeout arbitrate between
// connections.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "data/app.db", CreateDir: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	st, err := db.Prepare(ctx, "SELECT id, name FROM devices WHERE room = ?")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	if err := st.BindText(1, "kitchen"); err != nil {
//	    return err
//	}
//	rows, err := st.Execute(ctx)
package database
