// Package odata renders the OData 4.0 documents that describe a form's
// submissions: the EDMX metadata document and the service document.
package odata

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/beevik/etree"
)

const (
	// NamespaceBase prefixes every form's schema namespace.
	NamespaceBase = "org.opendatakit.user"

	// RecordsSet is the entity set holding a form's root records.
	RecordsSet = "Records"

	recordType = "Record"
	edmxNS     = "http://docs.oasis-open.org/odata/ns/edmx"
	edmNS      = "http://docs.oasis-open.org/odata/ns/edm"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Namespace returns the schema namespace for a form id.
func Namespace(formID string) string {
	return NamespaceBase + "." + unsafeName.ReplaceAllString(formID, "_")
}

// Metadata renders the EDMX document for a form.
//
// Root fields become properties of the Record entity type, keyed by
// instanceId. Each structure becomes a complex type and each repeat a
// collection of one, named by the "__"-joined path.
func Metadata(formID string, schema *xform.Schema) ([]byte, error) {
	ns := Namespace(formID)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	edmx := doc.CreateElement("edmx:Edmx")
	edmx.CreateAttr("xmlns:edmx", edmxNS)
	edmx.CreateAttr("Version", "4.0")

	s := edmx.CreateElement("edmx:DataServices").CreateElement("Schema")
	s.CreateAttr("xmlns", edmNS)
	s.CreateAttr("Namespace", ns)

	record := s.CreateElement("EntityType")
	record.CreateAttr("Name", recordType)
	record.CreateElement("Key").CreateElement("PropertyRef").CreateAttr("Name", xform.RootKeyColumn)
	property(record, xform.RootKeyColumn, "Edm.String")

	// Complex types are collected first so they follow the entity type.
	var complexTypes []*etree.Element
	describe(record, schema.Fields, ns, nil, &complexTypes)
	for _, ct := range complexTypes {
		s.AddChild(ct)
	}

	container := s.CreateElement("EntityContainer")
	container.CreateAttr("Name", "Container")
	set := container.CreateElement("EntitySet")
	set.CreateAttr("Name", RecordsSet)
	set.CreateAttr("EntityType", ns+"."+recordType)

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("write edmx: %w", err)
	}
	return out, nil
}

func describe(target *etree.Element, fields []*xform.Field, ns string, path []string, complexTypes *[]*etree.Element) {
	for _, f := range fields {
		if !f.Nested() {
			property(target, f.Key, f.Type.EdmType())
			continue
		}

		sub := append(append([]string(nil), path...), f.Key)
		name := strings.Join(sub, "__")

		inner := etree.NewElement("ComplexType")
		inner.CreateAttr("Name", name)
		*complexTypes = append(*complexTypes, inner)
		describe(inner, f.Children, ns, sub, complexTypes)

		typeName := ns + "." + name
		if f.Kind == xform.KindRepeat {
			typeName = "Collection(" + typeName + ")"
		}
		property(target, f.Key, typeName)
	}
}

func property(target *etree.Element, name, typ string) {
	p := target.CreateElement("Property")
	p.CreateAttr("Name", name)
	p.CreateAttr("Type", typ)
}
