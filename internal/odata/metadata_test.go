package odata

import (
	"testing"

	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() *xform.Schema {
	return &xform.Schema{
		Root:   "data",
		FormID: "house-survey.v2",
		Fields: []*xform.Field{
			{Key: "name", Kind: xform.KindAtomic, Type: xform.TypeString},
			{Key: "rooms", Kind: xform.KindAtomic, Type: xform.TypeInteger},
			{Key: "where", Kind: xform.KindAtomic, Type: xform.TypeGeopoint},
			{Key: "people", Kind: xform.KindRepeat, Children: []*xform.Field{
				{Key: "age", Kind: xform.KindAtomic, Type: xform.TypeDecimal},
				{Key: "pets", Kind: xform.KindRepeat, Children: []*xform.Field{
					{Key: "species", Kind: xform.KindAtomic, Type: xform.TypeString},
				}},
			}},
			{Key: "meta", Kind: xform.KindStructure, Children: []*xform.Field{
				{Key: "instanceID", Kind: xform.KindAtomic, Type: xform.TypeString},
			}},
		},
	}
}

type prop struct{ name, typ string }

func props(el *etree.Element) []prop {
	var out []prop
	for _, p := range el.SelectElements("Property") {
		out = append(out, prop{p.SelectAttrValue("Name", ""), p.SelectAttrValue("Type", "")})
	}
	return out
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "org.opendatakit.user.house_survey_v2", Namespace("house-survey.v2"))
	assert.Equal(t, "org.opendatakit.user.plain_1", Namespace("plain_1"))
}

func TestMetadata(t *testing.T) {
	out, err := Metadata("house-survey.v2", sampleSchema())
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))

	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Edmx", root.Tag)
	assert.Equal(t, "4.0", root.SelectAttrValue("Version", ""))

	schema := doc.FindElement("//Schema")
	require.NotNil(t, schema)
	ns := "org.opendatakit.user.house_survey_v2"
	assert.Equal(t, ns, schema.SelectAttrValue("Namespace", ""))

	record := schema.SelectElement("EntityType")
	require.NotNil(t, record)
	assert.Equal(t, "Record", record.SelectAttrValue("Name", ""))
	assert.Equal(t, "instanceId", record.FindElement("Key/PropertyRef").SelectAttrValue("Name", ""))
	assert.Equal(t, []prop{
		{"instanceId", "Edm.String"},
		{"name", "Edm.String"},
		{"rooms", "Edm.Int64"},
		{"where", "Edm.GeographyPoint"},
		{"people", "Collection(" + ns + ".people)"},
		{"meta", ns + ".meta"},
	}, props(record))

	complexTypes := schema.SelectElements("ComplexType")
	var names []string
	for _, ct := range complexTypes {
		names = append(names, ct.SelectAttrValue("Name", ""))
	}
	assert.Equal(t, []string{"people", "people__pets", "meta"}, names)
	assert.Equal(t, []prop{
		{"age", "Edm.Decimal"},
		{"pets", "Collection(" + ns + ".people__pets)"},
	}, props(complexTypes[0]))

	set := schema.FindElement("EntityContainer/EntitySet")
	require.NotNil(t, set)
	assert.Equal(t, "Records", set.SelectAttrValue("Name", ""))
	assert.Equal(t, ns+".Record", set.SelectAttrValue("EntityType", ""))
}

func TestMetadata_Deterministic(t *testing.T) {
	a, err := Metadata("f", sampleSchema())
	require.NoError(t, err)
	b, err := Metadata("f", sampleSchema())
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestServiceDocument(t *testing.T) {
	doc := NewServiceDocument("https://h/forms/f.svc/$metadata")
	assert.Equal(t, "https://h/forms/f.svc/$metadata", doc.Context)
	assert.Equal(t, []EntitySet{{Name: "Records", Kind: "EntitySet", URL: "Records"}}, doc.Value)

	assert.Equal(t, "https://h/forms/f.svc/$metadata#Records", ContextURL("https://h", "f", RecordsSet))
}
