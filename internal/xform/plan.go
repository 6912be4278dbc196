package xform

import (
	"strconv"
	"strings"
)

// RootKeyColumn is the join-key column carrying a submission's instance id.
const RootKeyColumn = "instanceId"

// Table is one relational table implied by a schema: the root, or a
// structure/repeat node at any depth.
type Table struct {
	ID     string   // sanitized dotted path; empty for the root
	Path   []string // key path from the instance root; nil for the root
	Field  *Field   // the structure/repeat node; nil for the root
	Parent int      // index of the parent table in the Tables slice; -1 for the root
	Fields []*Field // fields at this table's level

	// KeyColumns is the join-key chain: the root instance key first, then
	// one surrogate key per nested level down to and including this table.
	KeyColumns []string
}

// IsRoot reports whether t is the implicit root table.
func (t *Table) IsRoot() bool {
	return t.Parent < 0
}

// Atomics returns the table level's non-nested fields in schema order.
func (t *Table) Atomics() []*Field {
	var out []*Field
	for _, f := range t.Fields {
		if !f.Nested() {
			out = append(out, f)
		}
	}
	return out
}

// Header returns the CSV header: join-key chain, then atomic field keys.
// A field whose key equals a join-key column gets a numeric suffix so every
// column name is distinct.
func (t *Table) Header() []string {
	atomics := t.Atomics()
	header := make([]string, 0, len(t.KeyColumns)+len(atomics))
	used := make(map[string]bool, cap(header))
	for _, k := range t.KeyColumns {
		header = append(header, k)
		used[k] = true
	}
	for _, f := range atomics {
		header = append(header, uniqueName(f.Key, used))
	}
	return header
}

// uniqueName returns name, or name_2, name_3 and so on if taken, and marks
// the result as used.
func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[candidate]; n++ {
		candidate = name + "_" + strconv.Itoa(n)
	}
	used[candidate] = true
	return candidate
}

// Sanitize turns a dotted field path into a table identifier.
func Sanitize(dotted string) string {
	return strings.ReplaceAll(dotted, ".", "_")
}

// Plan lists the identifiers of every nested table in pre-order.
// The root table is implicit and not listed.
func Plan(s *Schema) []string {
	tables := Tables(s)
	ids := make([]string, 0, len(tables)-1)
	for _, t := range tables[1:] {
		ids = append(ids, t.ID)
	}
	return ids
}

// Tables returns the root table followed by every nested table in pre-order.
// Each table's Parent indexes into the returned slice.
//
// Table ids are unique. Distinct paths that sanitize alike ("a_b" and "a.b"),
// or an id whose key column would be instanceId, get a numeric suffix.
func Tables(s *Schema) []*Table {
	root := &Table{
		Parent:     -1,
		Fields:     s.Fields,
		KeyColumns: []string{RootKeyColumn},
	}
	p := &planner{
		tables: []*Table{root},
		keys:   map[string]bool{RootKeyColumn: true},
	}
	p.plan(0, s.Fields, nil)
	return p.tables
}

// planner tracks the key columns taken so far; table ids map one to one
// onto key columns, so this also keeps ids unique.
type planner struct {
	tables []*Table
	keys   map[string]bool
}

func (p *planner) uniqueID(base string) string {
	id := base
	for n := 2; p.keys[id+"Id"]; n++ {
		id = base + "_" + strconv.Itoa(n)
	}
	p.keys[id+"Id"] = true
	return id
}

func (p *planner) plan(parent int, fields []*Field, prefix []string) {
	for _, f := range fields {
		if !f.Nested() {
			continue
		}
		path := append(append([]string(nil), prefix...), f.Key)
		id := p.uniqueID(Sanitize(strings.Join(path, ".")))
		tables := p.tables

		keys := append([]string(nil), tables[parent].KeyColumns...)
		keys = append(keys, id+"Id")

		tables = append(tables, &Table{
			ID:         id,
			Path:       path,
			Field:      f,
			Parent:     parent,
			Fields:     f.Children,
			KeyColumns: keys,
		})
		p.tables = tables
		p.plan(len(tables)-1, f.Children, path)
	}
}
