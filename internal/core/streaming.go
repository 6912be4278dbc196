package core

// streaming.go reads posted XML documents.
//
// Form definitions and submissions arrive as raw request bodies. Windows
// tools often prefix them with a UTF-8 byte order mark, which the XML
// decoder rejects before the prolog, so it is dropped here. The reader also
// enforces the configured body size without trusting Content-Length.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrBodyTooLarge is returned when a document exceeds the size limit.
var ErrBodyTooLarge = errors.New("document too large")

// ErrEmptyBody is returned for a document with no content.
var ErrEmptyBody = errors.New("empty document")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader drops a leading UTF-8 byte order mark.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, err := b.r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// CountingReader tracks bytes read and fails once more than Limit bytes
// have been consumed. A zero Limit disables the check.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64
}

// NewCountingReader wraps r with an optional limit.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{reader: r, Limit: limit}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.BytesRead += int64(n)
	if c.Limit > 0 && c.BytesRead > c.Limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.Limit)
	}
	return n, err
}

// ReadDocument reads a whole posted document through the BOM filter and the
// size limit.
func ReadDocument(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(NewCountingReader(NewBOMSkippingReader(r), limit))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	return body, nil
}
