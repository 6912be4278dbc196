package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/beevik/etree"
	"github.com/iancoleman/orderedmap"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ODataJSON writes submissions as an OData collection response:
//
//	{"@odata.context": "...", "value": [ {...}, {...} ]}
//
// Records are encoded one at a time so the document is never held in memory.
// Field order follows the schema, not the source document.
type ODataJSON struct {
	out        *bufio.Writer
	schema     *xform.Schema
	contextURI string
	count      *int64
	logger     *slog.Logger

	opened bool
	rows   int
	closed bool
	err    error
}

// ODataJSONOption configures an ODataJSON exporter.
type ODataJSONOption func(*ODataJSON)

// WithCount adds "@odata.count" to the response.
func WithCount(n int64) ODataJSONOption {
	return func(e *ODataJSON) { e.count = &n }
}

// WithLogger sets the logger coercion warnings are reported to.
func WithLogger(l *slog.Logger) ODataJSONOption {
	return func(e *ODataJSON) { e.logger = l }
}

// NewODataJSON creates a typed JSON exporter for schema.
func NewODataJSON(w io.Writer, schema *xform.Schema, contextURI string, opts ...ODataJSONOption) *ODataJSON {
	e := &ODataJSON{
		out:        bufio.NewWriter(w),
		schema:     schema,
		contextURI: contextURI,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ODataJSON) open() error {
	ctx, err := json.Marshal(e.contextURI)
	if err != nil {
		return fmt.Errorf("encode context uri: %w", err)
	}
	var b strings.Builder
	b.WriteString(`{"@odata.context":`)
	b.Write(ctx)
	if e.count != nil {
		fmt.Fprintf(&b, `,"@odata.count":%d`, *e.count)
	}
	b.WriteString(`,"value":[`)
	if _, err := e.out.WriteString(b.String()); err != nil {
		return err
	}
	e.opened = true
	return nil
}

// WriteRow appends one record. Only the first record is written without a
// leading comma.
func (e *ODataJSON) WriteRow(row xform.Row) error {
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

	if !e.opened {
		if err := e.open(); err != nil {
			e.err = err
			return err
		}
	}

	body, err := encodeRecord(e.Record(row.InstanceID, root))
	if err != nil {
		e.err = &xform.SubmissionError{InstanceID: row.InstanceID, Err: err}
		return e.err
	}
	if e.rows > 0 {
		if err := e.out.WriteByte(','); err != nil {
			e.err = err
			return err
		}
	}
	if _, err := e.out.Write(body); err != nil {
		e.err = err
		return err
	}

	e.rows++
	if e.rows%flushInterval == 0 {
		if err := e.out.Flush(); err != nil {
			e.err = err
			return err
		}
	}
	return nil
}

// Record builds the typed, ordered record for one parsed instance. The
// entity key comes first, then the schema's fields.
func (e *ODataJSON) Record(instanceID string, root *etree.Element) *orderedmap.OrderedMap {
	rec := orderedmap.New()
	rec.Set(xform.RootKeyColumn, instanceID)
	e.fill(rec, root, e.schema.Fields, "")
	return rec
}

// encodeRecord writes an ordered record as compact JSON, walking nested
// maps itself so keys keep their insertion order.
func encodeRecord(rec *orderedmap.OrderedMap) ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	writeValue(stream, rec)
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func writeValue(stream *jsoniter.Stream, v interface{}) {
	switch v := v.(type) {
	case *orderedmap.OrderedMap:
		stream.WriteObjectStart()
		for i, key := range v.Keys() {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(key)
			val, _ := v.Get(key)
			writeValue(stream, val)
		}
		stream.WriteObjectEnd()
	case []interface{}:
		stream.WriteArrayStart()
		for i, item := range v {
			if i > 0 {
				stream.WriteMore()
			}
			writeValue(stream, item)
		}
		stream.WriteArrayEnd()
	default:
		stream.WriteVal(v)
	}
}

func (e *ODataJSON) fill(obj *orderedmap.OrderedMap, el *etree.Element, fields []*xform.Field, prefix string) {
	for _, f := range fields {
		path := prefix + "/" + f.Key

		switch f.Kind {
		case xform.KindAtomic:
			text, ok := xform.Value(el, f)
			if !ok {
				continue
			}
			if v, ok := e.coerce(path, f.Type, text); ok {
				obj.Set(f.Key, v)
			}

		case xform.KindStructure:
			occ := xform.Occurrences(el, f)
			if len(occ) == 0 {
				continue
			}
			sub := orderedmap.New()
			e.fill(sub, occ[0], f.Children, path)
			obj.Set(f.Key, sub)

		case xform.KindRepeat:
			occ := xform.Occurrences(el, f)
			if len(occ) == 0 {
				continue
			}
			items := make([]interface{}, len(occ))
			for i, o := range occ {
				sub := orderedmap.New()
				e.fill(sub, o, f.Children, path)
				items[i] = sub
			}
			obj.Set(f.Key, items)
		}
	}
}

// coerce converts atomic text to its JSON value. Empty text for a non-string
// type is treated as absent; text that fails to parse is logged and omitted.
func (e *ODataJSON) coerce(path string, t xform.Type, text string) (interface{}, bool) {
	if t != xform.TypeString && strings.TrimSpace(text) == "" {
		return nil, false
	}

	var (
		v   interface{}
		err error
	)
	switch t {
	case xform.TypeInteger:
		v, err = xform.CoerceInteger(path, text)
	case xform.TypeDecimal:
		v, err = xform.CoerceDecimal(path, text)
	case xform.TypeGeopoint:
		var p xform.Point
		if p, err = xform.CoerceGeopoint(path, text); err == nil {
			point := orderedmap.New()
			point.Set("type", "Point")
			point.Set("coordinates", p.Coordinates())
			v = point
		}
	default:
		return text, true
	}

	if err != nil {
		var ce *xform.CoercionError
		if errors.As(err, &ce) {
			e.logger.Warn("omitting field that does not match its type",
				"path", ce.Path,
				"type", ce.Type.String(),
				"value", ce.Text,
			)
		}
		return nil, false
	}
	return v, true
}

// Rows returns the number of records written.
func (e *ODataJSON) Rows() int {
	return e.rows
}

// Close terminates the value array and the response object and flushes.
func (e *ODataJSON) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.err != nil {
		return e.err
	}

	if !e.opened {
		if err := e.open(); err != nil {
			return err
		}
	}
	if _, err := e.out.WriteString("]}"); err != nil {
		return err
	}
	return e.out.Flush()
}

// Abort stops the exporter, leaving the document unterminated.
func (e *ODataJSON) Abort() {
	e.closed = true
}
