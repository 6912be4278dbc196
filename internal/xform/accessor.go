package xform

import (
	"strings"

	"github.com/beevik/etree"
)

// Accessor is a precompiled key path into a parsed instance, resolved by
// following the first matching child element at each step.
type Accessor []string

// Element returns the addressed element, or nil if any step is absent.
func (a Accessor) Element(from *etree.Element) *etree.Element {
	el := from
	for _, key := range a {
		if el = child(el, key); el == nil {
			return nil
		}
	}
	return el
}

// Text returns the addressed element's text and whether it is present.
func (a Accessor) Text(from *etree.Element) (string, bool) {
	el := a.Element(from)
	if el == nil {
		return "", false
	}
	return el.Text(), true
}

// Column is one flat output column: an atomic field reached from the root
// through structures only.
type Column struct {
	Name   string // dotted key path, e.g. "meta.instanceID"
	Field  *Field
	Access Accessor
}

// FlatColumns lists the schema's non-repeated atomic fields in schema order.
// Anything beneath a repeat is dropped.
func FlatColumns(s *Schema) []Column {
	var cols []Column
	s.Walk(func(path []string, f *Field) bool {
		switch f.Kind {
		case KindRepeat:
			return false
		case KindAtomic:
			cols = append(cols, Column{
				Name:   strings.Join(path, "."),
				Field:  f,
				Access: Accessor(path),
			})
		}
		return true
	})
	return cols
}

// Occurrences normalizes a nested field's value under parent into a list:
// every matching element for a repeat, zero or one for a structure.
func Occurrences(parent *etree.Element, f *Field) []*etree.Element {
	if f.Kind == KindRepeat {
		return children(parent, f.Key)
	}
	if el := child(parent, f.Key); el != nil {
		return []*etree.Element{el}
	}
	return nil
}

// Value returns the text of an atomic field directly under parent.
func Value(parent *etree.Element, f *Field) (string, bool) {
	el := child(parent, f.Key)
	if el == nil {
		return "", false
	}
	return el.Text(), true
}
