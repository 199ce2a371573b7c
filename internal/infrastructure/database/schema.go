package database

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// schemaExt is the extension of schema script files.
const schemaExt = ".sql"

// ApplySchema runs every *.sql file directly inside dir, in lexical filename
// order, and returns the names of the files it applied.
//
// # Atomicity
//
// Each script runs in its own transaction. If script N fails:
//   - Scripts 1 to N-1 remain committed
//   - Script N is rolled back
//   - Scripts N+1 onwards are not attempted
//
// No record of applied scripts is kept, so scripts are run on every call and
// must be idempotent (CREATE TABLE IF NOT EXISTS and the like). Prefix file
// names with a sortable number to control ordering:
//
//	schema/
//	  001_devices.sql
//	  002_readings.sql
//
// Empty scripts are skipped and not reported.
func (db *DB) ApplySchema(ctx context.Context, fsys afero.Fs, dir string) ([]string, error) {
	if db.conn == nil {
		return nil, ErrNotOpen
	}

	scripts, err := loadSchemaScripts(fsys, dir)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, s := range scripts {
		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			return db.Execute(ctx, s.sql)
		})
		if err != nil {
			return applied, fmt.Errorf("applying schema %s: %w", s.name, err)
		}
		db.debug("schema script applied", "file", s.name)
		applied = append(applied, s.name)
	}
	return applied, nil
}

// schemaScript is one loaded schema file.
type schemaScript struct {
	name string
	sql  string
}

// loadSchemaScripts reads the non-empty *.sql files in dir, sorted by name.
func loadSchemaScripts(fsys afero.Fs, dir string) ([]schemaScript, error) {
	// afero.ReadDir returns entries sorted by filename.
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, queryError("reading schema directory", err)
	}

	var scripts []schemaScript
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), schemaExt) {
			continue
		}

		data, err := afero.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, queryError("reading "+entry.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		scripts = append(scripts, schemaScript{name: entry.Name(), sql: string(data)})
	}
	return scripts, nil
}
