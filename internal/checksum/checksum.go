// Package checksum computes the archive checksum defined in spec.md I6: a
// SHA-512 digest, base64-encoded, over the sorted (index, GUID, revision)
// triples of the packages added locally to one archive (never the baseline's
// own entries — spec.md §4.5).
package checksum

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"

	"github.com/mswsus/cms/internal/identity"
)

// Compute hashes entries, which must already be sorted by Index ascending
// (see [identity.Table.OwnEntries]). For each entry it writes a 4-byte
// little-endian index, a 4-byte little-endian revision, and the 16 raw GUID
// bytes, then returns the base64 standard encoding of the SHA-512 digest.
//
// crypto/sha512 and encoding/base64 are standard-library primitives used
// directly: no third-party hashing library in the retrieved corpus improves
// on the standard library for a fixed, well-known digest algorithm.
func Compute(entries []identity.Entry) string {
	h := sha512.New()

	var buf [24]byte

	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(e.Index))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(e.Identity.Revision))
		copy(buf[8:24], e.Identity.GUID[:])
		h.Write(buf[:])
	}

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
