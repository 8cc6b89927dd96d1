package secindex

import (
	"github.com/google/uuid"

	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/pkg/archive"
)

// SupersedenceIndex tracks which update superseded which: a superseded
// update's GUID maps to the index of its superseder, last write wins on
// re-ingestion (spec.md §4.4 "Supersedence"). SupersedingUpdates is the
// inverse, materialized on read rather than stored, since a given
// superseder's victim list only grows by walking SupersededUpdates forward.
type SupersedenceIndex struct {
	baselineEnd identity.Index
	baseline    *SupersedenceIndex

	own  map[uuid.UUID]identity.Index // superseded GUID -> superseder index
	lazy *Lazy[map[uuid.UUID]identity.Index]
}

// NewSupersedenceIndexForWriting creates an empty index for the Writing
// state.
func NewSupersedenceIndexForWriting() *SupersedenceIndex {
	return &SupersedenceIndex{own: make(map[uuid.UUID]identity.Index)}
}

// NewSupersedenceIndexForReading creates an index for the Reading state.
func NewSupersedenceIndexForReading(reader *archive.Reader, blobName string, baselineEnd identity.Index, baseline *SupersedenceIndex) *SupersedenceIndex {
	idx := &SupersedenceIndex{baselineEnd: baselineEnd, baseline: baseline}
	idx.lazy = NewLazy(func() (map[uuid.UUID]identity.Index, error) {
		return loadJSON[map[uuid.UUID]identity.Index](reader, blobName)
	})

	return idx
}

// PutSuperseded records that superseder supersedes each of superseded.
// Re-ingesting the same superseded GUID overwrites its prior superseder
// (last write wins).
func (idx *SupersedenceIndex) PutSuperseded(superseder identity.Index, superseded []uuid.UUID) {
	for _, g := range superseded {
		idx.own[g] = superseder
	}
}

// SupersederOf resolves the update that superseded g, recursing into the
// baseline on miss. Keyed by GUID, not index, so there is no
// BaselineIndexesEnd boundary on the recursion: a delta may re-supersede a
// GUID the baseline already recorded.
func (idx *SupersedenceIndex) SupersederOf(g uuid.UUID) (identity.Index, bool, error) {
	m, err := idx.lazy.Get()
	if err != nil {
		return 0, false, err
	}

	if superseder, ok := m[g]; ok {
		return superseder, true, nil
	}

	if idx.baseline != nil {
		return idx.baseline.SupersederOf(g)
	}

	return 0, false, nil
}

// SupersededUpdates is SupersederOf's inverse: the GUIDs superseder
// supersedes, materialized by walking this archive's own entries plus the
// baseline's, forward. A GUID the baseline recorded under superseder is
// excluded if this archive's own map re-supersedes it under a different
// superseder (last write wins, same as [SupersedenceIndex.SupersederOf]).
func (idx *SupersedenceIndex) SupersededUpdates(superseder identity.Index) ([]uuid.UUID, error) {
	m, err := idx.lazy.Get()
	if err != nil {
		return nil, err
	}

	var out []uuid.UUID

	for g, s := range m {
		if s == superseder {
			out = append(out, g)
		}
	}

	if idx.baseline != nil {
		baseOut, err := idx.baseline.SupersededUpdates(superseder)
		if err != nil {
			return nil, err
		}

		for _, g := range baseOut {
			if _, overridden := m[g]; !overridden {
				out = append(out, g)
			}
		}
	}

	return out, nil
}

// Serialize returns this archive's own superseded->superseder entries as
// JSON. Unlike the index-keyed secondary indexes this is not stripped by
// BaselineIndexesEnd: a delta's own re-supersedence entries are exactly the
// entries it wrote this archive, regardless of which archive first recorded
// the GUID.
func (idx *SupersedenceIndex) Serialize() ([]byte, error) {
	return marshalJSON(idx.own)
}
