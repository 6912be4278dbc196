package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/beevik/etree"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// MultiTable writes submissions into a ZIP of joinable CSVs: one for the
// root and one per structure or repeat group in the table plan.
//
// Root rows are keyed by the submission's instance id. Every nested row gets
// a sequential surrogate key for its table and carries the full chain of
// ancestor keys, so any table joins straight back to the root.
type MultiTable struct {
	zip      *zip.Writer
	rootName string
	spoolDir string
	now      func() time.Time

	tables   []*xform.Table
	names    []string       // archive entry per table
	writers  []*tableWriter // indexed like tables
	children [][]int        // child table indexes per table
	rows     int
	closed   bool
	err      error
}

// tableWriter is the runtime state of one table: its CSV encoder and the
// next surrogate key. The root writes straight into its archive entry;
// nested tables write into a spool created on first use.
type tableWriter struct {
	csv   *csv.Writer
	spool *spool
	last  int64
}

// MultiTableOption configures a MultiTable.
type MultiTableOption func(*MultiTable)

// WithSpoolDir sets the directory nested tables are spooled to.
// The default is the system temp directory.
func WithSpoolDir(dir string) MultiTableOption {
	return func(m *MultiTable) { m.spoolDir = dir }
}

// WithClock sets the time source for archive entry timestamps.
func WithClock(now func() time.Time) MultiTableOption {
	return func(m *MultiTable) { m.now = now }
}

// NewMultiTable creates a multi-table exporter writing a ZIP archive to w.
// rootName names the root table's file.
func NewMultiTable(w io.Writer, rootName string, src SchemaSource, opts ...MultiTableOption) (*MultiTable, error) {
	schema, err := src.resolve()
	if err != nil {
		return nil, err
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		fw, err := flate.NewWriter(out, flate.BestCompression)
		if err != nil {
			return nil, err
		}
		return fw, nil
	})

	m := &MultiTable{
		zip:      zw,
		rootName: rootName,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if schema != nil {
		m.plan(schema)
	}
	return m, nil
}

// plan builds the table registry from the schema. No entries are written yet.
func (m *MultiTable) plan(schema *xform.Schema) {
	m.tables = xform.Tables(schema)
	m.names = make([]string, len(m.tables))
	used := make(map[string]bool, len(m.tables))
	for i, t := range m.tables {
		base := t.ID
		if t.IsRoot() {
			base = m.rootName
		}
		name := base
		for n := 2; used[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = true
		m.names[i] = name + ".csv"
	}
	m.writers = make([]*tableWriter, len(m.tables))
	m.children = make([][]int, len(m.tables))
	for i, t := range m.tables {
		m.writers[i] = &tableWriter{}
		if !t.IsRoot() {
			m.children[t.Parent] = append(m.children[t.Parent], i)
		}
	}
}

// Tables returns the planned file names, root first, or nil while the
// schema still depends on the first row.
func (m *MultiTable) Tables() []string {
	if m.tables == nil {
		return nil
	}
	return append([]string(nil), m.names...)
}

func (m *MultiTable) fileName(i int) string {
	return m.names[i]
}

func (m *MultiTable) createEntry(i int) (io.Writer, error) {
	w, err := m.zip.CreateHeader(&zip.FileHeader{
		Name:     m.fileName(i),
		Method:   zip.Deflate,
		Modified: m.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create archive entry %s: %w", m.fileName(i), err)
	}
	return w, nil
}

// openRoot starts the root entry and writes its header.
func (m *MultiTable) openRoot() error {
	entry, err := m.createEntry(0)
	if err != nil {
		return err
	}
	root := m.writers[0]
	root.csv = csv.NewWriter(entry)
	return root.csv.Write(m.tables[0].Header())
}

// openSpool lazily creates a nested table's spool and writes its header.
func (m *MultiTable) openSpool(i int) error {
	s, err := newSpool(m.spoolDir)
	if err != nil {
		return err
	}
	tw := m.writers[i]
	tw.spool = s
	tw.csv = csv.NewWriter(s)
	return tw.csv.Write(m.tables[i].Header())
}

// WriteRow writes the root row for one submission and fans its nested
// values out into the child tables, depth-first.
func (m *MultiTable) WriteRow(row xform.Row) error {
	if m.closed {
		return ErrClosed
	}
	if m.err != nil {
		return m.err
	}

	root, err := parseRow(row)
	if err != nil {
		m.err = err
		return err
	}

	if m.rows == 0 {
		if m.tables == nil {
			m.plan(xform.InferFromElement(root))
		}
		if err := m.openRoot(); err != nil {
			m.err = fmt.Errorf("write root table header: %w", err)
			return m.err
		}
	}

	if err := m.emit(0, root, []string{row.InstanceID}); err != nil {
		m.err = err
		return err
	}

	m.rows++
	if m.rows%flushInterval == 0 {
		if err := m.flush(); err != nil {
			m.err = err
			return err
		}
	}
	return nil
}

// emit writes el as a row of table i keyed by chain, then recurses into
// each child table over the normalized occurrences of its field.
func (m *MultiTable) emit(i int, el *etree.Element, chain []string) error {
	t := m.tables[i]
	tw := m.writers[i]

	if tw.csv == nil {
		if err := m.openSpool(i); err != nil {
			return err
		}
	}

	atomics := t.Atomics()
	record := make([]string, 0, len(chain)+len(atomics))
	record = append(record, chain...)
	for _, f := range atomics {
		v, _ := xform.Value(el, f)
		record = append(record, v)
	}
	if err := tw.csv.Write(record); err != nil {
		return fmt.Errorf("write %s row: %w", m.fileName(i), err)
	}

	for _, ci := range m.children[i] {
		ct := m.tables[ci]
		cw := m.writers[ci]
		for _, occ := range xform.Occurrences(el, ct.Field) {
			cw.last++
			sub := make([]string, len(chain), len(chain)+1)
			copy(sub, chain)
			sub = append(sub, strconv.FormatInt(cw.last, 10))
			if err := m.emit(ci, occ, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiTable) flush() error {
	for i, tw := range m.writers {
		if tw.csv == nil {
			continue
		}
		tw.csv.Flush()
		if err := tw.csv.Error(); err != nil {
			return fmt.Errorf("flush %s: %w", m.fileName(i), err)
		}
	}
	return nil
}

// Close completes the archive: the root entry is finished first, then every
// nested table is closed in plan order and copied into its own entry, and
// only then is the central directory written. Nested tables that received
// no rows still get a header-only file.
func (m *MultiTable) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	defer m.removeSpools()
	if m.err != nil {
		return m.err
	}

	if m.tables == nil {
		// First-row schema and no rows: an archive with a key-only root table.
		m.plan(&xform.Schema{})
	}
	if m.rows == 0 {
		if err := m.openRoot(); err != nil {
			return fmt.Errorf("write root table header: %w", err)
		}
	}

	root := m.writers[0]
	root.csv.Flush()
	if err := root.csv.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", m.fileName(0), err)
	}

	for i := 1; i < len(m.tables); i++ {
		if err := m.closeTable(i); err != nil {
			return err
		}
	}

	if err := m.zip.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func (m *MultiTable) closeTable(i int) error {
	entry, err := m.createEntry(i)
	if err != nil {
		return err
	}

	tw := m.writers[i]
	if tw.spool == nil {
		out := csv.NewWriter(entry)
		if err := out.Write(m.tables[i].Header()); err != nil {
			return fmt.Errorf("write %s header: %w", m.fileName(i), err)
		}
		out.Flush()
		return out.Error()
	}

	tw.csv.Flush()
	if err := tw.csv.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", m.fileName(i), err)
	}
	return tw.spool.drainTo(entry)
}

// Abort drops spooled tables without finalizing the archive.
func (m *MultiTable) Abort() {
	m.closed = true
	m.removeSpools()
}

func (m *MultiTable) removeSpools() {
	for _, tw := range m.writers {
		if tw.spool != nil {
			tw.spool.remove()
		}
	}
}
