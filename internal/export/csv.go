// Package export renders the grid's current view as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/grid"
)

// Options control which rows and columns an export covers.
type Options struct {
	// Columns restricts the export to these column keys, in this order.
	// Empty means every defined column.
	Columns []string
	// SelectedOnly exports only selected records.
	SelectedOnly bool
}

// CSV writes the manager's filtered, sorted working set to w. The header
// row carries column labels; rows follow the current sort order across
// all pages, not just the visible one.
func CSV(w io.Writer, m *grid.Manager, opts Options) error {
	columns := visibleColumns(m, opts.Columns)
	if len(columns) == 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "no columns to export")
	}

	records := m.FilteredAll()
	if opts.SelectedOnly {
		records = selectedOnly(m, records)
	}

	writer := csv.NewWriter(w)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Label
		if header[i] == "" {
			header[i] = col.Key
		}
	}
	if err := writer.Write(header); err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "writing header", err)
	}

	row := make([]string, len(columns))
	for _, record := range records {
		for i, col := range columns {
			v, _ := record.Field(col.Key)
			row[i] = formatCell(v)
		}
		if err := writer.Write(row); err != nil {
			return errors.NewInternalError(errors.ErrCodeInternal, "writing row "+record.ID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "flushing export", err)
	}

	return nil
}

func visibleColumns(m *grid.Manager, keys []string) []grid.ColumnDefinition {
	defined := m.Columns()
	if len(keys) == 0 {
		return defined
	}

	byKey := make(map[string]grid.ColumnDefinition, len(defined))
	for _, col := range defined {
		byKey[col.Key] = col
	}

	out := make([]grid.ColumnDefinition, 0, len(keys))
	for _, key := range keys {
		if col, ok := byKey[key]; ok {
			out = append(out, col)
		}
	}

	return out
}

func selectedOnly(m *grid.Manager, records []grid.Record) []grid.Record {
	out := make([]grid.Record, 0, len(records))
	for _, r := range records {
		if m.IsSelected(r.ID) {
			out = append(out, r)
		}
	}

	return out
}

// formatCell renders a field value; nil becomes the empty string so
// spreadsheets show blank cells rather than "<nil>".
func formatCell(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case time.Time:
		return value.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", value)
	}
}
