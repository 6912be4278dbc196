// Package xform derives typed field schemas and table plans from XForms
// definitions and submission instances, and provides the accessors the
// exporters use to read values back out of parsed rows.
package xform

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Kind tags a Field as a leaf value, a single nested group, or a repeat group.
type Kind int

const (
	KindAtomic Kind = iota
	KindStructure
	KindRepeat
)

func (k Kind) String() string {
	switch k {
	case KindStructure:
		return "structure"
	case KindRepeat:
		return "repeat"
	default:
		return "atomic"
	}
}

// Field is one node of a form's field schema.
// Fields are immutable once built; exporters keep their runtime state elsewhere.
type Field struct {
	Key      string
	Kind     Kind
	Type     Type // meaningful only for KindAtomic
	Children []*Field
}

// Nested reports whether the field owns children (structure or repeat).
func (f *Field) Nested() bool {
	return f.Kind != KindAtomic
}

// Schema is the field tree rooted at a form's instance element.
type Schema struct {
	Root   string // local name of the instance root element
	FormID string // id attribute of the instance root, if present
	Fields []*Field
}

// repeatMarker is the attribute local name flagging a repeat template
// (jr:template in ODK XForms).
const repeatMarker = "template"

// ExtractSchema parses a form definition and derives its field schema from
// the model's instance template and bind declarations.
//
// Missing or unrecognized bind types degrade to TypeString; only an
// unparsable document or a missing instance template is an error.
func ExtractSchema(definition []byte) (*Schema, error) {
	doc, err := parseDocument(definition)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDefinition, err)
	}

	model := descendant(doc.Root(), "model")
	if model == nil {
		return nil, fmt.Errorf("%w: no model element", ErrMalformedDefinition)
	}
	instance := child(model, "instance")
	if instance == nil {
		return nil, fmt.Errorf("%w: no model instance", ErrMalformedDefinition)
	}
	kids := instance.ChildElements()
	if len(kids) == 0 {
		return nil, fmt.Errorf("%w: empty model instance", ErrMalformedDefinition)
	}
	root := kids[0]

	binds := make(map[string]string)
	for _, b := range children(model, "bind") {
		nodeset, ok := attr(b, "nodeset")
		if !ok {
			continue
		}
		bindType, _ := attr(b, "type")
		binds[normalizeNodeset(nodeset)] = bindType
	}

	formID, _ := attr(root, "id")
	return &Schema{
		Root:   root.Tag,
		FormID: formID,
		Fields: extractFields(root, "/"+root.Tag, binds),
	}, nil
}

func extractFields(el *etree.Element, path string, binds map[string]string) []*Field {
	var fields []*Field
	seen := make(map[string]bool)

	for _, c := range el.ChildElements() {
		if seen[c.Tag] {
			continue
		}
		seen[c.Tag] = true

		// Repeats do not add an index to the bind path.
		sub := path + "/" + c.Tag
		switch {
		case isRepeatTemplate(c):
			fields = append(fields, &Field{
				Key:      c.Tag,
				Kind:     KindRepeat,
				Children: extractFields(c, sub, binds),
			})
		case len(c.ChildElements()) == 0:
			fields = append(fields, &Field{
				Key:  c.Tag,
				Kind: KindAtomic,
				Type: ParseType(binds[sub]),
			})
		default:
			fields = append(fields, &Field{
				Key:      c.Tag,
				Kind:     KindStructure,
				Children: extractFields(c, sub, binds),
			})
		}
	}
	return fields
}

func isRepeatTemplate(el *etree.Element) bool {
	_, ok := attr(el, repeatMarker)
	return ok
}

// normalizeNodeset strips namespace prefixes from each nodeset step so
// "/h:data/h:name" and "/data/name" address the same field.
func normalizeNodeset(nodeset string) string {
	steps := strings.Split(strings.TrimSpace(nodeset), "/")
	for i, step := range steps {
		if j := strings.IndexByte(step, ':'); j >= 0 {
			steps[i] = step[j+1:]
		}
	}
	return strings.Join(steps, "/")
}

// Walk visits every field in pre-order, passing the dotted key path.
// Returning false from fn skips the field's children.
func (s *Schema) Walk(fn func(path []string, f *Field) bool) {
	walk(s.Fields, nil, fn)
}

func walk(fields []*Field, prefix []string, fn func([]string, *Field) bool) {
	for _, f := range fields {
		path := append(append([]string(nil), prefix...), f.Key)
		if fn(path, f) && f.Nested() {
			walk(f.Children, path, fn)
		}
	}
}
