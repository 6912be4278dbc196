package odata

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	ten := int64(10)
	zero := int64(0)

	tests := []struct {
		name    string
		raw     string
		want    Query
		wantErr error
	}{
		{name: "empty", raw: "", want: Query{}},
		{name: "paging", raw: "$top=10&$skip=5", want: Query{Top: &ten, Skip: 5}},
		{name: "top zero", raw: "$top=0", want: Query{Top: &zero}},
		{name: "count", raw: "$count=true&$format=json", want: Query{Count: true}},
		{name: "custom params ignored", raw: "foo=bar&$skip=1", want: Query{Skip: 1}},
		{name: "negative top", raw: "$top=-1", wantErr: ErrInvalidOption},
		{name: "bad skip", raw: "$skip=x", wantErr: ErrInvalidOption},
		{name: "bad count", raw: "$count=maybe", wantErr: ErrInvalidOption},
		{name: "filter", raw: "$filter=a eq 1", wantErr: ErrUnsupportedOption},
		{name: "expand", raw: "$expand=*", wantErr: ErrUnsupportedOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)

			q, err := ParseQuery(values)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestCheckOptions(t *testing.T) {
	assert.NoError(t, CheckOptions(url.Values{"$top": {"1"}, "x": {"y"}}))
	assert.ErrorContains(t, CheckOptions(url.Values{"$orderby": {"a"}}), "$orderby")
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		format, accept string
		want           bool
	}{
		{"json", "", true},
		{"JSON", "", true},
		{"", "application/json", true},
		{"", "application/json;odata.metadata=minimal", true},
		{"", "*/*", false},
		{"", "", false},
		{"xml", "application/xml", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WantsJSON(tt.format, tt.accept), "format=%q accept=%q", tt.format, tt.accept)
	}
}

func TestVersionSupported(t *testing.T) {
	assert.True(t, VersionSupported(""))
	assert.True(t, VersionSupported("4.0"))
	assert.True(t, VersionSupported("4.01"))
	assert.True(t, VersionSupported("garbage"))
	assert.False(t, VersionSupported("3.0"))
}
