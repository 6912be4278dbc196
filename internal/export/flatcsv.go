package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JonMunkholm/formbridge/internal/xform"
)

// FlatCSV writes every submission as one CSV row, dropping repeat groups.
// Structure fields are flattened into dotted column names.
type FlatCSV struct {
	out      *csv.Writer
	columns  []xform.Column
	resolved bool
	rows     int
	closed   bool
	err      error
}

// NewFlatCSV creates a flat CSV exporter writing to w.
// A schema source that cannot be resolved fails here, before any output.
func NewFlatCSV(w io.Writer, src SchemaSource) (*FlatCSV, error) {
	schema, err := src.resolve()
	if err != nil {
		return nil, err
	}

	e := &FlatCSV{out: csv.NewWriter(w)}
	if schema != nil {
		e.columns = xform.FlatColumns(schema)
		e.resolved = true
	}
	return e, nil
}

// Columns returns the header, or nil while it still depends on the first row.
func (e *FlatCSV) Columns() []string {
	if !e.resolved {
		return nil
	}
	names := make([]string, len(e.columns))
	for i, c := range e.columns {
		names[i] = c.Name
	}
	return names
}

// WriteRow resolves every column against the row's own document. Columns the
// row omits are written as empty cells so each record has full width.
func (e *FlatCSV) WriteRow(row xform.Row) error {
	if e.closed {
		return ErrClosed
	}
	if e.err != nil {
		return e.err
	}

	root, err := parseRow(row)
	if err != nil {
		e.err = err
		return err
	}

	if e.rows == 0 {
		if !e.resolved {
			e.columns = xform.FlatColumns(xform.InferFromElement(root))
			e.resolved = true
		}
		if err := e.out.Write(e.Columns()); err != nil {
			e.err = fmt.Errorf("write csv header: %w", err)
			return e.err
		}
	}

	record := make([]string, len(e.columns))
	for i, col := range e.columns {
		record[i], _ = col.Access.Text(root)
	}
	if err := e.out.Write(record); err != nil {
		e.err = fmt.Errorf("write csv row: %w", err)
		return e.err
	}

	e.rows++
	if e.rows%flushInterval == 0 {
		e.out.Flush()
		if err := e.out.Error(); err != nil {
			e.err = fmt.Errorf("flush csv: %w", err)
			return e.err
		}
	}
	return nil
}

// Rows returns the number of data rows written.
func (e *FlatCSV) Rows() int {
	return e.rows
}

// Close writes the header if no row did, then flushes.
// With a first-row schema and no rows the output stays empty.
func (e *FlatCSV) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.err != nil {
		return e.err
	}

	if e.rows == 0 && e.resolved {
		if err := e.out.Write(e.Columns()); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	e.out.Flush()
	if err := e.out.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Abort stops the exporter without flushing buffered rows.
func (e *FlatCSV) Abort() {
	e.closed = true
}
