// Package export streams submission rows into flat CSV, multi-table ZIP and
// OData JSON outputs.
//
// Every exporter is push based: the caller feeds rows one at a time with
// WriteRow, in cursor order, then calls Close to terminate the output. Each
// row is parsed once and written before WriteRow returns, so memory use is
// bounded by a single row regardless of result-set size.
//
// Row failures abort: WriteRow returns a *xform.SubmissionError and the
// exporter refuses further rows. The caller must then Abort instead of Close,
// leaving the output visibly truncated (no CSV tail, an unterminated JSON
// document, a ZIP without a central directory).
package export

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/beevik/etree"
)

// ErrClosed is returned by WriteRow after Close or Abort.
var ErrClosed = errors.New("exporter closed")

// flushInterval is how many rows are buffered before the CSV writers flush
// through to the underlying stream.
const flushInterval = 500

// Exporter is the shared lifecycle of all three output formats.
type Exporter interface {
	WriteRow(row xform.Row) error
	Close() error
	Abort()
}

// SchemaSource says where an exporter takes its field schema from.
type SchemaSource struct {
	schema   *xform.Schema
	template []byte
}

// Definition uses a schema already extracted from the form definition.
func Definition(s *xform.Schema) SchemaSource {
	return SchemaSource{schema: s}
}

// TemplateInstance infers the schema from a caller-supplied submission.
func TemplateInstance(xml []byte) SchemaSource {
	return SchemaSource{template: xml}
}

// FirstRow infers the schema from the first row written.
func FirstRow() SchemaSource {
	return SchemaSource{}
}

// resolve returns the schema when it does not depend on the rows, or nil
// when it must be inferred from the first row.
func (s SchemaSource) resolve() (*xform.Schema, error) {
	switch {
	case s.schema != nil:
		return s.schema, nil
	case s.template != nil:
		schema, err := xform.InferSchema(s.template)
		if err != nil {
			return nil, fmt.Errorf("%w: template instance: %v", xform.ErrMalformedDefinition, err)
		}
		return schema, nil
	default:
		return nil, nil
	}
}

// parseRow parses a row's XML into its instance root.
func parseRow(row xform.Row) (*etree.Element, error) {
	root, err := xform.ParseInstance(row.XML)
	if err != nil {
		return nil, &xform.SubmissionError{InstanceID: row.InstanceID, Err: err}
	}
	return root, nil
}
