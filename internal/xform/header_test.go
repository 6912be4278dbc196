package xform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormHeader(t *testing.T) {
	h, err := ParseFormHeader([]byte(censusForm))
	require.NoError(t, err)
	assert.Equal(t, "census", h.UID)

	tests := []struct {
		name string
		xml  string
		want error
	}{
		{"unparsable", `<<`, ErrCannotParseXML},
		{"no model", `<h:html xmlns:h="x"/>`, ErrMissingFormID},
		{"empty instance", `<h:html xmlns:h="x"><model><instance/></model></h:html>`, ErrMissingFormID},
		{"blank id", `<h:html xmlns:h="x"><model><instance><data id=""/></instance></model></h:html>`, ErrMissingFormID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormHeader([]byte(tt.xml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseSubmissionHeader(t *testing.T) {
	tests := []struct {
		name       string
		xml        string
		formID     string
		instanceID string
		err        error
	}{
		{
			name:       "meta instance id",
			xml:        `<data id="census"><meta><instanceID>uuid:1B4E28BA-2FA1-11D2-883F-0016D3CCA427</instanceID></meta></data>`,
			formID:     "census",
			instanceID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		},
		{
			name:       "attribute instance id",
			xml:        `<data id="census" instanceID="UUID:abc"/>`,
			formID:     "census",
			instanceID: "abc",
		},
		{
			name:       "legacy envelope",
			xml:        `<submission><data><census id="census" instanceID="uuid:x1"/></data></submission>`,
			formID:     "census",
			instanceID: "x1",
		},
		{name: "no form id", xml: `<data><meta><instanceID>uuid:a</instanceID></meta></data>`, err: ErrMissingInstanceID},
		{name: "no instance id", xml: `<data id="census"/>`, err: ErrMissingInstanceID},
		{name: "no prefix", xml: `<data id="census" instanceID="abc"/>`, err: ErrInstanceIDFormat},
		{name: "prefix only", xml: `<data id="census" instanceID="uuid:"/>`, err: ErrInstanceIDFormat},
		{name: "unparsable", xml: `<data`, err: ErrCannotParseXML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseSubmissionHeader([]byte(tt.xml))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.formID, h.FormID)
			assert.Equal(t, tt.instanceID, h.InstanceID)
		})
	}
}
