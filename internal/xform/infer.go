package xform

import "github.com/beevik/etree"

// InferSchema derives a schema from a submission instance rather than a form
// definition. Every leaf is a string; a tag occurring more than once among
// its siblings is a repeat whose shape is merged across all occurrences.
func InferSchema(instance []byte) (*Schema, error) {
	root, err := ParseInstance(instance)
	if err != nil {
		return nil, err
	}
	return InferFromElement(root), nil
}

// InferFromElement is InferSchema over an already parsed instance root.
func InferFromElement(root *etree.Element) *Schema {
	formID, _ := attr(root, "id")
	return &Schema{
		Root:   root.Tag,
		FormID: formID,
		Fields: inferFields([]*etree.Element{root}),
	}
}

// inferFields merges the children of every occurrence of one node.
func inferFields(occurrences []*etree.Element) []*Field {
	var order []string
	groups := make(map[string][]*etree.Element)
	repeated := make(map[string]bool)

	for _, occ := range occurrences {
		counts := make(map[string]int)
		for _, c := range occ.ChildElements() {
			if _, ok := groups[c.Tag]; !ok {
				order = append(order, c.Tag)
			}
			groups[c.Tag] = append(groups[c.Tag], c)
			counts[c.Tag]++
			if counts[c.Tag] > 1 {
				repeated[c.Tag] = true
			}
		}
	}

	fields := make([]*Field, 0, len(order))
	for _, key := range order {
		elems := groups[key]
		switch {
		case repeated[key]:
			fields = append(fields, &Field{Key: key, Kind: KindRepeat, Children: inferFields(elems)})
		case hasChildElements(elems):
			fields = append(fields, &Field{Key: key, Kind: KindStructure, Children: inferFields(elems)})
		default:
			fields = append(fields, &Field{Key: key, Kind: KindAtomic, Type: TypeString})
		}
	}
	return fields
}

func hasChildElements(elems []*etree.Element) bool {
	for _, el := range elems {
		if len(el.ChildElements()) > 0 {
			return true
		}
	}
	return false
}
