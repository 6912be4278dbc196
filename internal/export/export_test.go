package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tripForm = `<?xml version="1.0"?>
<h:html xmlns="http://www.w3.org/2002/xforms" xmlns:h="http://www.w3.org/1999/xhtml" xmlns:jr="http://openrosa.org/javarosa">
  <h:head>
    <model>
      <instance>
        <trip id="trips">
          <driver/>
          <km/>
          <start/>
          <stops jr:template="">
            <place/>
            <bags jr:template="">
              <weight/>
            </bags>
          </stops>
          <meta><instanceID/></meta>
        </trip>
      </instance>
      <bind nodeset="/trip/km" type="int"/>
      <bind nodeset="/trip/start" type="geopoint"/>
      <bind nodeset="/trip/stops/bags/weight" type="decimal"/>
    </model>
  </h:head>
</h:html>`

const (
	tripA = `<trip id="trips"><driver>Ann</driver><km>42</km><start>1 2 3</start>` +
		`<stops><place>X</place><bags><weight>1.5</weight></bags></stops>` +
		`<stops><place>Y</place></stops>` +
		`<meta><instanceID>uuid:a</instanceID></meta></trip>`
	tripB = `<trip id="trips"><driver>Bo, "Jr"</driver><meta><instanceID>uuid:b</instanceID></meta></trip>`
)

func tripSchema(t *testing.T) *xform.Schema {
	t.Helper()
	s, err := xform.ExtractSchema([]byte(tripForm))
	require.NoError(t, err)
	return s
}

func rows() []xform.Row {
	return []xform.Row{
		{FormID: "trips", InstanceID: "a", XML: []byte(tripA)},
		{FormID: "trips", InstanceID: "b", XML: []byte(tripB)},
	}
}

func writeAll(t *testing.T, e Exporter, rs []xform.Row) {
	t.Helper()
	for _, r := range rs {
		require.NoError(t, e.WriteRow(r))
	}
	require.NoError(t, e.Close())
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestFlatCSV(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewFlatCSV(&buf, Definition(tripSchema(t)))
	require.NoError(t, err)

	assert.Equal(t, []string{"driver", "km", "start", "meta.instanceID"}, e.Columns())
	writeAll(t, e, rows())

	assert.Equal(t, [][]string{
		{"driver", "km", "start", "meta.instanceID"},
		{"Ann", "42", "1 2 3", "uuid:a"},
		{`Bo, "Jr"`, "", "", "uuid:b"},
	}, readCSV(t, buf.Bytes()))
	assert.Equal(t, 2, e.Rows())
}

func TestFlatCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewFlatCSV(&buf, Definition(tripSchema(t)))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	assert.Equal(t, "driver,km,start,meta.instanceID\n", buf.String())
}

func TestFlatCSV_FirstRow(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewFlatCSV(&buf, FirstRow())
	require.NoError(t, err)
	assert.Nil(t, e.Columns())

	writeAll(t, e, []xform.Row{rows()[1], rows()[0]})

	records := readCSV(t, buf.Bytes())
	assert.Equal(t, []string{"driver", "meta.instanceID"}, records[0])
	assert.Equal(t, []string{"Ann", "uuid:a"}, records[2])
}

func TestFlatCSV_FirstRowEmpty(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewFlatCSV(&buf, FirstRow())
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.Empty(t, buf.String())
}

func TestTemplateInstance_Malformed(t *testing.T) {
	_, err := NewFlatCSV(&bytes.Buffer{}, TemplateInstance([]byte("<trip")))
	assert.ErrorIs(t, err, xform.ErrMalformedDefinition)

	_, err = NewMultiTable(&bytes.Buffer{}, "trip", TemplateInstance([]byte("")))
	assert.ErrorIs(t, err, xform.ErrMalformedDefinition)
}

func TestExporters_MalformedRowAborts(t *testing.T) {
	schema := tripSchema(t)
	bad := xform.Row{InstanceID: "bad", XML: []byte("<trip")}

	exporters := map[string]func(*bytes.Buffer) Exporter{
		"flat": func(b *bytes.Buffer) Exporter {
			e, _ := NewFlatCSV(b, Definition(schema))
			return e
		},
		"multi": func(b *bytes.Buffer) Exporter {
			e, _ := NewMultiTable(b, "trip", Definition(schema), WithSpoolDir(t.TempDir()))
			return e
		},
		"json": func(b *bytes.Buffer) Exporter {
			return NewODataJSON(b, schema, "ctx")
		},
	}
	for name, build := range exporters {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			e := build(&buf)

			require.NoError(t, e.WriteRow(rows()[0]))
			err := e.WriteRow(bad)

			var se *xform.SubmissionError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "bad", se.InstanceID)
			assert.ErrorIs(t, err, xform.ErrMalformedSubmission)

			assert.ErrorIs(t, e.WriteRow(rows()[1]), xform.ErrMalformedSubmission, "exporter stays failed")
			e.Abort()
			assert.ErrorIs(t, e.WriteRow(rows()[1]), ErrClosed)
		})
	}
}

func TestExporters_WriteAfterClose(t *testing.T) {
	e, err := NewFlatCSV(&bytes.Buffer{}, Definition(tripSchema(t)))
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "close is idempotent")

	assert.ErrorIs(t, e.WriteRow(rows()[0]), ErrClosed)
}

func TestFlatCSV_AbortLeavesTailUnwritten(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewFlatCSV(&buf, Definition(tripSchema(t)))
	require.NoError(t, err)

	require.NoError(t, e.WriteRow(rows()[0]))
	e.Abort()
	assert.Empty(t, buf.String())
}

func TestFlatCSV_FlushesPeriodically(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewFlatCSV(&buf, Definition(tripSchema(t)))
	require.NoError(t, err)

	for i := 0; i < flushInterval; i++ {
		require.NoError(t, e.WriteRow(rows()[1]))
	}
	assert.Equal(t, flushInterval+1, strings.Count(buf.String(), "\n"))
}

func TestStreaming_LargeResultSet(t *testing.T) {
	const n = 2000
	var buf bytes.Buffer
	e, err := NewFlatCSV(&buf, Definition(tripSchema(t)))
	require.NoError(t, err)

	row := rows()[0]
	for i := 0; i < n; i++ {
		require.NoError(t, e.WriteRow(row))
	}
	require.NoError(t, e.Close())
	assert.Len(t, readCSV(t, buf.Bytes()), n+1)
}

func TestSpool(t *testing.T) {
	s, err := newSpool(t.TempDir())
	require.NoError(t, err)

	_, err = s.Write([]byte("a,b\n"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.drainTo(&out))
	assert.Equal(t, "a,b\n", out.String())

	name := s.file.Name()
	s.remove()
	s.remove()
	assert.NoFileExists(t, name)
}

func openZip(t *testing.T, data []byte) map[string][][]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string][][]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		records, err := csv.NewReader(rc).ReadAll()
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = records
	}
	return out
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}
