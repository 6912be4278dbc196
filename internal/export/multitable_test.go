package export

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiTable(t *testing.T) {
	spoolDir := t.TempDir()
	var buf bytes.Buffer
	e, err := NewMultiTable(&buf, "trips", Definition(tripSchema(t)), WithSpoolDir(spoolDir))
	require.NoError(t, err)

	assert.Equal(t, []string{"trips.csv", "stops.csv", "stops_bags.csv", "meta.csv"}, e.Tables())
	writeAll(t, e, rows())

	assert.Equal(t, []string{"trips.csv", "stops.csv", "stops_bags.csv", "meta.csv"}, zipNames(t, buf.Bytes()))

	files := openZip(t, buf.Bytes())
	assert.Equal(t, [][]string{
		{"instanceId", "driver", "km", "start"},
		{"a", "Ann", "42", "1 2 3"},
		{"b", `Bo, "Jr"`, "", ""},
	}, files["trips.csv"])
	assert.Equal(t, [][]string{
		{"instanceId", "stopsId", "place"},
		{"a", "1", "X"},
		{"a", "2", "Y"},
	}, files["stops.csv"])
	assert.Equal(t, [][]string{
		{"instanceId", "stopsId", "stops_bagsId", "weight"},
		{"a", "1", "1", "1.5"},
	}, files["stops_bags.csv"])
	assert.Equal(t, [][]string{
		{"instanceId", "metaId", "instanceID"},
		{"a", "1", "uuid:a"},
		{"b", "2", "uuid:b"},
	}, files["meta.csv"])

	entries, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "spools are removed after close")
}

func TestMultiTable_RootNameMatchesTable(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewMultiTable(&buf, "stops", Definition(tripSchema(t)))
	require.NoError(t, err)

	want := []string{"stops.csv", "stops_2.csv", "stops_bags.csv", "meta.csv"}
	assert.Equal(t, want, e.Tables())
	writeAll(t, e, rows())
	assert.Equal(t, want, zipNames(t, buf.Bytes()))

	files := openZip(t, buf.Bytes())
	assert.Equal(t, []string{"instanceId", "driver", "km", "start"}, files["stops.csv"][0])
	assert.Equal(t, []string{"instanceId", "stopsId", "place"}, files["stops_2.csv"][0])
}

func TestMultiTable_EmptyTablesHaveHeaders(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewMultiTable(&buf, "trips", Definition(tripSchema(t)))
	require.NoError(t, err)
	writeAll(t, e, rows()[1:])

	files := openZip(t, buf.Bytes())
	assert.Equal(t, [][]string{{"instanceId", "stopsId", "place"}}, files["stops.csv"])
	assert.Equal(t, [][]string{{"instanceId", "stopsId", "stops_bagsId", "weight"}}, files["stops_bags.csv"])
}

func TestMultiTable_NoRows(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewMultiTable(&buf, "trips", Definition(tripSchema(t)))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	files := openZip(t, buf.Bytes())
	require.Len(t, files, 4)
	assert.Equal(t, [][]string{{"instanceId", "driver", "km", "start"}}, files["trips.csv"])
}

func TestMultiTable_FirstRowNoRows(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewMultiTable(&buf, "trips", FirstRow())
	require.NoError(t, err)
	assert.Nil(t, e.Tables())
	require.NoError(t, e.Close())

	files := openZip(t, buf.Bytes())
	assert.Equal(t, map[string][][]string{"trips.csv": {{"instanceId"}}}, files)
}

func TestMultiTable_FirstRowInfersRepeats(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewMultiTable(&buf, "trips", FirstRow())
	require.NoError(t, err)
	writeAll(t, e, rows())

	assert.Equal(t, []string{"trips.csv", "stops.csv", "stops_bags.csv", "meta.csv"}, zipNames(t, buf.Bytes()))
}

func TestMultiTable_Clock(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	e, err := NewMultiTable(&buf, "trips", Definition(tripSchema(t)), WithClock(func() time.Time { return stamp }))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	for _, f := range zr.File {
		assert.True(t, f.Modified.Equal(stamp), f.Name)
		assert.Equal(t, zip.Deflate, f.Method)
	}
}

func TestMultiTable_AbortRemovesSpools(t *testing.T) {
	spoolDir := t.TempDir()
	var buf bytes.Buffer
	e, err := NewMultiTable(&buf, "trips", Definition(tripSchema(t)), WithSpoolDir(spoolDir))
	require.NoError(t, err)

	require.NoError(t, e.WriteRow(rows()[0]))
	entries, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	e.Abort()
	entries, err = os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.Error(t, err, "aborted archive has no central directory")
	assert.ErrorIs(t, e.WriteRow(xform.Row{}), ErrClosed)
}
