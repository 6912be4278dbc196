package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "with BOM", input: append([]byte{0xEF, 0xBB, 0xBF}, "<data/>"...), want: "<data/>"},
		{name: "without BOM", input: []byte("<data/>"), want: "<data/>"},
		{name: "shorter than BOM", input: []byte("<a"), want: "<a"},
		{name: "empty", input: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadDocument(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		body, err := ReadDocument(strings.NewReader("<data id=\"f\"/>"), 1024)
		if err != nil {
			t.Fatalf("ReadDocument() error = %v", err)
		}
		if string(body) != `<data id="f"/>` {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := ReadDocument(strings.NewReader(strings.Repeat("x", 100)), 10)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("error = %v, want ErrBodyTooLarge", err)
		}
	})

	t.Run("zero limit disables check", func(t *testing.T) {
		if _, err := ReadDocument(strings.NewReader(strings.Repeat("x", 100)), 0); err != nil {
			t.Errorf("ReadDocument() error = %v", err)
		}
	})

	t.Run("blank", func(t *testing.T) {
		_, err := ReadDocument(strings.NewReader(" \n\t"), 10)
		if !errors.Is(err, ErrEmptyBody) {
			t.Errorf("error = %v, want ErrEmptyBody", err)
		}
	})
}
