package secindex

import (
	"github.com/google/uuid"

	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/internal/wireformat"
	"github.com/mswsus/cms/pkg/archive"
)

// prereqWire is the on-disk shape for one wireformat.Prerequisite: a plain
// GUID list, with a sentinel all-zero GUID appended when the group is an
// AtLeastOne category group. A one-element list (with no sentinel) decodes
// back to Simple; anything else decodes to AtLeastOne (spec.md §9: "encode
// as a GUID list with a trailing all-zero sentinel marking isCategory;
// preserve this sentinel exactly for round-trip fidelity").
type prereqWire []uuid.UUID

func toWire(p wireformat.Prerequisite) prereqWire {
	if p.Simple {
		return prereqWire{p.GUIDs[0]}
	}

	wire := make(prereqWire, 0, len(p.GUIDs)+1)
	wire = append(wire, p.GUIDs...)

	if p.IsCategory {
		wire = append(wire, uuid.UUID{})
	}

	return wire
}

func fromWire(w prereqWire) wireformat.Prerequisite {
	if len(w) == 1 && !wireformat.IsZeroGUID(w[0]) {
		return wireformat.NewSimplePrerequisite(w[0])
	}

	isCategory := len(w) > 0 && wireformat.IsZeroGUID(w[len(w)-1])
	if isCategory {
		return wireformat.NewAtLeastOnePrerequisite(w[:len(w)-1], true)
	}

	return wireformat.NewAtLeastOnePrerequisite(w, false)
}

// PrerequisitesIndex stores, per update index, the list of prerequisite
// groups required for that update to apply (spec.md §4.4 "Prerequisites").
type PrerequisitesIndex struct {
	baselineEnd identity.Index
	baseline    *PrerequisitesIndex

	own  map[identity.Index][]prereqWire
	lazy *Lazy[map[identity.Index][]prereqWire]
}

// NewPrerequisitesIndexForWriting creates an empty index for the Writing
// state.
func NewPrerequisitesIndexForWriting() *PrerequisitesIndex {
	return &PrerequisitesIndex{own: make(map[identity.Index][]prereqWire)}
}

// NewPrerequisitesIndexForReading creates an index for the Reading state.
func NewPrerequisitesIndexForReading(reader *archive.Reader, blobName string, baselineEnd identity.Index, baseline *PrerequisitesIndex) *PrerequisitesIndex {
	idx := &PrerequisitesIndex{baselineEnd: baselineEnd, baseline: baseline}
	idx.lazy = NewLazy(func() (map[identity.Index][]prereqWire, error) {
		return loadJSON[map[identity.Index][]prereqWire](reader, blobName)
	})

	return idx
}

// Put records the prerequisite groups for i. Writing state only.
func (idx *PrerequisitesIndex) Put(i identity.Index, prereqs []wireformat.Prerequisite) {
	wire := make([]prereqWire, len(prereqs))
	for n, p := range prereqs {
		wire[n] = toWire(p)
	}

	idx.own[i] = wire
}

// Get resolves i's prerequisite groups, recursing into the baseline on miss.
func (idx *PrerequisitesIndex) Get(i identity.Index) ([]wireformat.Prerequisite, bool, error) {
	m, err := idx.lazy.Get()
	if err != nil {
		return nil, false, err
	}

	wire, ok, err := resolve(m, i, idx.baselineEnd, idx.baselineGet)
	if err != nil || !ok {
		return nil, ok, err
	}

	out := make([]wireformat.Prerequisite, len(wire))
	for n, w := range wire {
		out[n] = fromWire(w)
	}

	return out, true, nil
}

func (idx *PrerequisitesIndex) baselineGet(i identity.Index) ([]prereqWire, bool, error) {
	if idx.baseline == nil {
		return nil, false, nil
	}

	prereqs, ok, err := idx.baseline.Get(i)
	if err != nil || !ok {
		return nil, ok, err
	}

	wire := make([]prereqWire, len(prereqs))
	for n, p := range prereqs {
		wire[n] = toWire(p)
	}

	return wire, true, nil
}

// Serialize returns this archive's own entries as JSON (spec.md I7).
func (idx *PrerequisitesIndex) Serialize() ([]byte, error) {
	return marshalJSON(stripBaseline(idx.own, idx.baselineEnd))
}
