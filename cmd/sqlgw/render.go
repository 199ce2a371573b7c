package main

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/nerrad567/sqlgw/internal/infrastructure/database"
)

// renderResult prints result as a table with columns as the header.
func renderResult(w io.Writer, columns []string, result database.Result) error {
	if len(result) == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	data := make(pterm.TableData, 0, len(result)+1)
	data = append(data, columns)
	for _, row := range result {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		data = append(data, cells)
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("rendering result: %w", err)
	}
	if _, err := fmt.Fprintln(w, table); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "(%d rows)\n", len(result))
	return err
}

// formatValue renders v for display. Text is shown unquoted, so only NULL
// and blobs are distinguishable by form.
func formatValue(v database.Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}
