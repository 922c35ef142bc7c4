package frame

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// xmlDeclMarker identifies an XML declaration line. The server emits one
// declaration per logical message, so a second marker in the line buffer
// is the start of the next document.
const xmlDeclMarker = "?xml"

// syntheticRoot wraps the bare top-level elements of a frame payload so
// the result parses as a single well-formed document.
const (
	syntheticRootOpen  = "<rocrail>"
	syntheticRootClose = "</rocrail>"
)

// ErrMalformedDocument is returned by Next when a complete document was
// extracted from the stream but failed to parse. The decoder's internal
// buffers remain valid; subsequent calls continue with the next document.
var ErrMalformedDocument = errors.New("frame: malformed document")

// Decoder incrementally reassembles NUL-framed XML documents from an
// append-only byte stream. It is not safe for concurrent use; the
// connection's reader goroutine is its only caller.
type Decoder struct {
	pending []byte
	lines   []string
}

// NewDecoder creates an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends bytes from the socket to the pending buffer. It never
// blocks and never discards data.
func (d *Decoder) Feed(p []byte) {
	d.pending = append(d.pending, p...)
}

// Next extracts and removes the next complete document from the buffered
// stream. It returns (nil, nil) when more bytes are needed, and a
// ErrMalformedDocument-wrapped error when a completed document failed to
// parse; in both cases the decoder stays usable.
func (d *Decoder) Next() (*Document, error) {
	end := d.findBoundary()
	if end < 0 {
		return nil, nil
	}

	raw := d.lines[:end]
	rest := make([]string, len(d.lines)-end)
	copy(rest, d.lines[end:])
	d.lines = rest

	doc, err := d.rebuild(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return doc, nil
}

// findBoundary consumes the next NUL-terminated chunk of the byte buffer
// into the line buffer and locates the end of the first complete document.
// Returns the boundary line index, or -1 if no document is complete yet.
func (d *Decoder) findBoundary() int {
	nul := bytes.IndexByte(d.pending, 0)
	if nul >= 0 {
		chunk := string(d.pending[:nul+1])
		remaining := make([]byte, len(d.pending)-nul-1)
		copy(remaining, d.pending[nul+1:])
		d.pending = remaining
		d.lines = append(d.lines, strings.Split(chunk, "\n")...)
	} else if len(d.lines) == 0 {
		return -1
	}

	// Drop protocol noise and partial leftovers preceding the first
	// declaration line.
	for len(d.lines) > 0 && !strings.Contains(d.lines[0], xmlDeclMarker) {
		d.lines = d.lines[1:]
	}
	if len(d.lines) == 0 {
		return -1
	}

	// Find the earliest boundary after the opening declaration: either the
	// NUL terminator line (end of a complete frame) or the next declaration
	// line (start of the following document). Taking the first hit peels
	// one document per call, so concatenated messages sharing a single NUL
	// still come out as separate documents in order.
	for i := 1; i < len(d.lines); i++ {
		if strings.ContainsRune(d.lines[i], 0) || strings.Contains(d.lines[i], xmlDeclMarker) {
			return i
		}
	}
	return -1
}

// rebuild turns raw document lines into a parseable tree: the synthetic
// root opens right after the declaration, any embedded declarations from
// concatenated messages are dropped, and the root is closed at the end.
func (d *Decoder) rebuild(raw []string) (*Document, error) {
	out := make([]string, 0, len(raw)+2)
	out = append(out, raw[0], syntheticRootOpen)
	for _, line := range raw[1:] {
		if strings.Contains(line, xmlDeclMarker) {
			continue
		}
		out = append(out, line)
	}
	out = append(out, syntheticRootClose)
	return parseDocument(strings.Join(out, "\n"))
}
