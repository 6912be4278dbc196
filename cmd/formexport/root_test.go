package main

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plotForm = `<?xml version="1.0"?>
<h:html xmlns="http://www.w3.org/2002/xforms" xmlns:h="http://www.w3.org/1999/xhtml" xmlns:jr="http://openrosa.org/javarosa">
  <h:head>
    <model>
      <instance>
        <data id="plots">
          <farmer/>
          <area/>
          <crop jr:template="">
            <kind/>
          </crop>
          <meta><instanceID/></meta>
        </data>
      </instance>
      <bind nodeset="/data/farmer" type="string"/>
      <bind nodeset="/data/area" type="decimal"/>
      <bind nodeset="/data/crop/kind" type="string"/>
    </model>
  </h:head>
</h:html>`

const (
	plotOne = `<data id="plots"><farmer>Ana</farmer><area>1.5</area><crop><kind>rice</kind></crop><meta><instanceID>uuid:7d1f0c4e-98a1-4b55-9d8c-3a5e2f0b1a01</instanceID></meta></data>`
	plotTwo = `<data id="plots"><farmer>Ben</farmer><area>0.25</area><meta><instanceID>uuid:7d1f0c4e-98a1-4b55-9d8c-3a5e2f0b1a02</instanceID></meta></data>`
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := getRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := getRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"csv", "zip", "json"})

	for _, flag := range []string{"form", "template", "out", "top", "skip", "max-size"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "--%s should exist", flag)
	}
}

func TestCSVWithForm(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.xml": plotForm, "1.xml": plotOne, "2.xml": plotTwo})

	out, err := run(t, "csv", "--form", filepath.Join(dir, "form.xml"), filepath.Join(dir, "1.xml"), filepath.Join(dir, "2.xml"))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"farmer", "area", "meta.instanceID"}, records[0])
	assert.Equal(t, "Ana", records[1][0], "rows keep command line order")
	assert.Equal(t, "Ben", records[2][0])
}

func TestCSVFromFirstRow(t *testing.T) {
	dir := writeFiles(t, map[string]string{"1.xml": plotOne, "2.xml": plotTwo})

	out, err := run(t, "csv", "--top", "1", filepath.Join(dir, "2.xml"), filepath.Join(dir, "1.xml"))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ben", records[1][0])
}

func TestZipToFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.xml": plotForm, "1.xml": plotOne})
	target := filepath.Join(dir, "plots.csv.zip")

	_, err := run(t, "zip", "--form", filepath.Join(dir, "form.xml"), "--out", target, filepath.Join(dir, "1.xml"))
	require.NoError(t, err)

	zr, err := zip.OpenReader(target)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"plots.csv", "crop.csv", "meta.csv"}, names)
}

func TestJSONWithTemplate(t *testing.T) {
	dir := writeFiles(t, map[string]string{"1.xml": plotOne, "2.xml": plotTwo})

	out, err := run(t, "json", "--count", "--template", filepath.Join(dir, "1.xml"), filepath.Join(dir, "1.xml"), filepath.Join(dir, "2.xml"))
	require.NoError(t, err)

	var doc struct {
		Context string           `json:"@odata.context"`
		Count   int64            `json:"@odata.count"`
		Value   []map[string]any `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	assert.Equal(t, "/forms/plots.svc/$metadata#Records", doc.Context)
	assert.Equal(t, int64(2), doc.Count)
	require.Len(t, doc.Value, 2)
	assert.Equal(t, "Ana", doc.Value[0]["farmer"])
}

func TestJSONNeedsSchema(t *testing.T) {
	dir := writeFiles(t, map[string]string{"1.xml": plotOne})

	_, err := run(t, "json", filepath.Join(dir, "1.xml"))
	assert.ErrorIs(t, err, errNeedSchema)
}

func TestFailedExportRemovesOutput(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.xml": plotForm, "bad.xml": "<data"})
	target := filepath.Join(dir, "out.csv")

	_, err := run(t, "csv", "--form", filepath.Join(dir, "form.xml"), "--out", target, filepath.Join(dir, "bad.xml"))
	require.Error(t, err)
	assert.NoFileExists(t, target)
}

func TestMaxSize(t *testing.T) {
	dir := writeFiles(t, map[string]string{"form.xml": plotForm})

	_, err := run(t, "csv", "--max-size", "100B", "--form", filepath.Join(dir, "form.xml"))
	assert.ErrorContains(t, err, "document too large")

	_, err = run(t, "csv", "--max-size", "lots", "--form", filepath.Join(dir, "form.xml"))
	assert.Error(t, err)
}

func TestPageFiles(t *testing.T) {
	files := []string{"a", "b", "c"}
	tests := []struct {
		skip, top int64
		want      []string
	}{
		{0, -1, []string{"a", "b", "c"}},
		{1, -1, []string{"b", "c"}},
		{1, 1, []string{"b"}},
		{5, -1, nil},
		{0, 0, []string{}},
		{-2, 2, []string{"a", "b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pageFiles(files, tt.skip, tt.top))
	}
}

func TestZipName(t *testing.T) {
	dir := writeFiles(t, map[string]string{"1.xml": plotOne})
	target := filepath.Join(dir, "out.zip")

	_, err := run(t, "zip", "--name", "fields", "--out", target, filepath.Join(dir, "1.xml"))
	require.NoError(t, err)

	zr, err := zip.OpenReader(target)
	require.NoError(t, err)
	defer zr.Close()
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "fields.csv", zr.File[0].Name)
}
