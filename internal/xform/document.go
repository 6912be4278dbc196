package xform

import (
	"fmt"

	"github.com/beevik/etree"
)

// parseDocument reads raw XML into an etree document.
func parseDocument(raw []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return doc, nil
}

// ParseInstance parses a submission and returns its instance root element.
//
// Legacy payloads wrap the instance as <submission><data><form .../></data></submission>;
// for those the single child of <data> is returned. Otherwise the document
// root is the instance.
func ParseInstance(raw []byte) (*etree.Element, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSubmission, err)
	}

	root := doc.Root()
	if root.Tag == "submission" {
		if data := child(root, "data"); data != nil {
			if kids := data.ChildElements(); len(kids) > 0 {
				return kids[0], nil
			}
		}
		return nil, fmt.Errorf("%w: submission envelope has no data", ErrMalformedSubmission)
	}
	return root, nil
}

// child returns the first child element with the given local name.
func child(el *etree.Element, key string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == key {
			return c
		}
	}
	return nil
}

// children returns every child element with the given local name, in order.
func children(el *etree.Element, key string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == key {
			out = append(out, c)
		}
	}
	return out
}

// attr returns the value of the attribute with the given local name.
func attr(el *etree.Element, key string) (string, bool) {
	for _, a := range el.Attr {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// descendant finds the first element with the given local name, depth-first.
func descendant(el *etree.Element, key string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == key {
			return c
		}
		if found := descendant(c, key); found != nil {
			return found
		}
	}
	return nil
}
