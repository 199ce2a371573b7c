package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nerrad567/sqlgw/internal/infrastructure/database"
)

// newRootCommand builds the sqlgw command tree around a.
func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sqlgw",
		Short:         "Access gateway for embedded SQLite stores",
		Long:          "sqlgw runs statements, queries, CSV imports and schema scripts against a SQLite database.",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", getConfigPath(), "config file (env SQLGW_CONFIG)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path, overrides database.path (:memory: for a scratch store)")

	root.AddCommand(
		newExecCommand(a),
		newQueryCommand(a),
		newImportCommand(a),
		newSchemaCommand(a),
		newVersionCommand(a),
	)
	return root
}

// withDB wraps a RunE body that needs an open database.
func (a *app) withDB(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if err := a.open(ctx); err != nil {
			a.close() //nolint:errcheck // Reporting the open failure
			return err
		}
		defer func() {
			if closeErr := a.close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(ctx, args)
	}
}

func newExecCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "exec [sql]",
		Short: "Execute one or more SQL statements",
		Example: `  sqlgw exec "CREATE TABLE devices(id INTEGER PRIMARY KEY, name TEXT)"
  sqlgw exec -f seed.sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			query, err := execSQL(file, args)
			if err != nil {
				return err
			}
			before := a.db.TotalChanges(ctx)
			if err := a.db.Execute(ctx, query); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "OK (%d rows changed)\n", a.db.TotalChanges(ctx)-before)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read SQL from file ('-' for stdin)")
	return cmd
}

// execSQL returns the SQL to run from either the file flag or the argument.
func execSQL(file string, args []string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("give either SQL or --file, not both")
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("no SQL given")
	}
}

func newQueryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql> [params...]",
		Short: "Run a statement with positional parameters and print the rows",
		Long: `Run a statement with positional parameters and print the rows.

Parameters bind to ?1, ?2, ... in order and are parsed as literals:
NULL, integers, floats, x'hex' blobs and 'quoted' text. Anything else is text.`,
		Example: `  sqlgw query "SELECT * FROM devices WHERE room = ? AND level > ?" kitchen 2`,
		Args:    cobra.MinimumNArgs(1),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			st, err := a.db.Prepare(ctx, args[0])
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // Read-only use

			params := make([]database.Value, 0, len(args)-1)
			for _, p := range args[1:] {
				params = append(params, database.ParseLiteral(p))
			}
			if err := st.BindAll(params...); err != nil {
				return err
			}

			result, err := st.Execute(ctx)
			if err != nil {
				return err
			}
			return renderResult(a.out, st.Columns(), result)
		}),
	}
}

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <table> <file.csv>",
		Short: "Insert CSV rows into a table in one transaction",
		Long: `Insert CSV rows into a table in one transaction.

The first CSV record names the columns. Cells are parsed as literals (see
query); an empty cell is empty text. If any row fails nothing is inserted.`,
		Args: cobra.ExactArgs(2),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			columns, rows, err := readCSV(args[1])
			if err != nil {
				return err
			}
			n, err := a.db.BulkInsert(ctx, args[0], columns, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "imported %d rows into %s\n", n, args[0])
			return nil
		}),
	}
}

// readCSV reads a header row and data rows from path ('-' for stdin).
func readCSV(path string) ([]string, [][]database.Value, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path) // #nosec G304 -- path supplied by the operator
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close() //nolint:errcheck // Read-only
		in = f
	}
	return parseCSV(in)
}

func parseCSV(in io.Reader) ([]string, [][]database.Value, error) {
	r := csv.NewReader(in)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("csv: missing header row")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var rows [][]database.Value
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("csv: %w", err)
		}
		row := make([]database.Value, len(record))
		for i, cell := range record {
			row[i] = database.ParseLiteral(cell)
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}

func newSchemaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <dir>",
		Short: "Apply every *.sql script in a directory, in filename order",
		Args:  cobra.ExactArgs(1),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			applied, err := a.db.ApplySchema(ctx, afero.NewOsFs(), args[0])
			for _, name := range applied {
				fmt.Fprintf(a.out, "applied %s\n", name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(a.out, "no schema scripts found")
			}
			return nil
		}),
	}
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "sqlgw version %s\n", version)
			fmt.Fprintf(a.out, "  Git Commit: %s\n", commit)
			fmt.Fprintf(a.out, "  Build Date: %s\n", date)
			fmt.Fprintf(a.out, "  SQLite:     %s\n", database.Version())
			fmt.Fprintf(a.out, "  Go Version: %s\n", runtime.Version())
		},
	}
}
