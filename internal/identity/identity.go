// Package identity implements the package-identity and index tables (spec
// component C1): a dense, insertion-ordered integer index over the set of
// (GUID, revision) pairs known to an archive and its baseline chain.
package identity

import (
	"bytes"

	"github.com/google/uuid"
)

// Index is the dense, non-negative handle assigned to an Identity in strict
// insertion order. Indexes are stable within one archive and extend the
// contiguous range allocated by the baseline, if any.
type Index int32

// Identity is a (GUID, revision) pair. Two identities are equal iff both
// fields match. Identities are totally ordered by GUID bytes, then revision.
type Identity struct {
	GUID     uuid.UUID
	Revision int32
}

// Shard returns the one-byte shard used to distribute XML entries across
// archive subdirectories: the last byte of the GUID.
func (id Identity) Shard() byte {
	return id.GUID[len(id.GUID)-1]
}

// Compare orders identities by GUID bytes, then revision.
func (id Identity) Compare(other Identity) int {
	if c := bytes.Compare(id.GUID[:], other.GUID[:]); c != 0 {
		return c
	}

	switch {
	case id.Revision < other.Revision:
		return -1
	case id.Revision > other.Revision:
		return 1
	default:
		return 0
	}
}

// Kind enumerates the package kinds a Record can carry.
type Kind int

const (
	KindUnknown Kind = iota
	KindDetectoid
	KindClassification
	KindProduct
	KindSoftwareUpdate
	KindDriverUpdate
)

// IsCategory reports whether the kind is one of Detectoid, Classification, or
// Product (spec.md §3: "the first three are categories").
func (k Kind) IsCategory() bool {
	return k == KindDetectoid || k == KindClassification || k == KindProduct
}

func (k Kind) String() string {
	switch k {
	case KindDetectoid:
		return "Detectoid"
	case KindClassification:
		return "Classification"
	case KindProduct:
		return "Product"
	case KindSoftwareUpdate:
		return "SoftwareUpdate"
	case KindDriverUpdate:
		return "DriverUpdate"
	default:
		return "Unknown"
	}
}
