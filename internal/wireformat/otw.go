package wireformat

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/mswsus/cms/internal/identity"
)

// OverTheWireRecord is what a producer hands to Sink.AddUpdates: the
// identity and kind are already known (they arrive in the protocol
// envelope, ahead of the XML body itself), and the XML payload may be
// DEFLATE-compressed to save transfer bandwidth (spec.md §4.9 addUpdates:
// "decompresses XML if the record carries only compressed XML").
type OverTheWireRecord struct {
	Identity      identity.Identity
	Kind          identity.Kind
	XML           []byte
	XMLCompressed bool
}

// XMLBytes returns r's XML payload, inflating it first if XMLCompressed is
// set. Decompression uses stdlib compress/flate: a single-shot in-memory
// inflate of an already-small XML blob has no ecosystem library that
// improves on it, and pkg/archive's klauspost/compress substitution is
// specifically about sustained archive-wide throughput, not this one-off
// wire-level inflate.
func (r OverTheWireRecord) XMLBytes() ([]byte, error) {
	if !r.XMLCompressed {
		return r.XML, nil
	}

	rc := flate.NewReader(bytes.NewReader(r.XML))
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("wireformat: inflating %s: %w", r.Identity.GUID, err)
	}

	return data, nil
}
