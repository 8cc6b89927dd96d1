package secindex

import (
	"github.com/google/uuid"

	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/pkg/archive"
)

// BundlesIndex maps a bundle parent's index to its children's indexes
// (BundlesIndex proper) and the inverse, a child's index to every parent
// that bundles it (IsBundledTable: spec.md §4.4 "a child may be bundled by
// more than one parent"), plus the transient PendingBundledUpdates set of
// child GUIDs referenced by a bundle but not yet ingested (spec.md I5).
type BundlesIndex struct {
	baselineEnd identity.Index
	baseline    *BundlesIndex

	children map[identity.Index][]identity.Index // Writing state: parent -> children
	parents  map[identity.Index][]identity.Index // Writing state: child -> parents

	childrenLazy *Lazy[map[identity.Index][]identity.Index]
	parentsLazy  *Lazy[map[identity.Index][]identity.Index]

	// pending tracks, for each bundle child GUID seen via a BundledChildren
	// list but not yet assigned its own index, every parent index still
	// waiting on it. Never serialized: it must be empty at commit time
	// (spec.md I5), enforced by the sink.
	pending map[uuid.UUID][]identity.Index
}

// NewBundlesIndexForWriting creates an empty index for the Writing state.
func NewBundlesIndexForWriting() *BundlesIndex {
	return &BundlesIndex{
		children: make(map[identity.Index][]identity.Index),
		parents:  make(map[identity.Index][]identity.Index),
		pending:  make(map[uuid.UUID][]identity.Index),
	}
}

// NewBundlesIndexForReading creates an index for the Reading state, loading
// its two blobs lazily and independently.
func NewBundlesIndexForReading(reader *archive.Reader, childrenBlob, parentsBlob string, baselineEnd identity.Index, baseline *BundlesIndex) *BundlesIndex {
	idx := &BundlesIndex{baselineEnd: baselineEnd, baseline: baseline}
	idx.childrenLazy = NewLazy(func() (map[identity.Index][]identity.Index, error) {
		return loadJSON[map[identity.Index][]identity.Index](reader, childrenBlob)
	})
	idx.parentsLazy = NewLazy(func() (map[identity.Index][]identity.Index, error) {
		return loadJSON[map[identity.Index][]identity.Index](reader, parentsBlob)
	})

	return idx
}

// PutBundle records that parent bundles children — only children already
// known when parent arrived (spec.md §4.4); unresolved children are tracked
// separately via MarkPending and added to BundlesIndex[parent] when they
// resolve.
func (idx *BundlesIndex) PutBundle(parent identity.Index, children []identity.Index) {
	idx.children[parent] = append(idx.children[parent], children...)

	for _, c := range children {
		idx.parents[c] = append(idx.parents[c], parent)
	}
}

// MarkPending records that parent bundles childGUID, which has not yet been
// ingested under its own identity. A childGUID may be marked pending by more
// than one parent before it resolves (spec.md §4.4: a child may be bundled
// by more than one parent).
func (idx *BundlesIndex) MarkPending(childGUID uuid.UUID, parent identity.Index) {
	idx.pending[childGUID] = append(idx.pending[childGUID], parent)
}

// ResolvePending links childIdx into every bundle parent that referenced
// childGUID before childIdx was known, then clears the pending entry — the
// retroactive link [BundlesIndex.PutBundle]'s doc comment promises. A no-op
// if childGUID was never pending.
func (idx *BundlesIndex) ResolvePending(childGUID uuid.UUID, childIdx identity.Index) {
	parents, ok := idx.pending[childGUID]
	if !ok {
		return
	}

	for _, parent := range parents {
		idx.PutBundle(parent, []identity.Index{childIdx})
	}

	delete(idx.pending, childGUID)
}

// PendingBundledUpdates returns the GUIDs still awaiting ingestion. Commit
// must refuse while this is non-empty (spec.md I5, cmserrors.ErrUnresolvedBundles).
func (idx *BundlesIndex) PendingBundledUpdates() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(idx.pending))
	for g := range idx.pending {
		out = append(out, g)
	}

	return out
}

// Children resolves parent's bundle children, recursing into the baseline.
func (idx *BundlesIndex) Children(parent identity.Index) ([]identity.Index, bool, error) {
	m, err := idx.childrenLazy.Get()
	if err != nil {
		return nil, false, err
	}

	return resolve(m, parent, idx.baselineEnd, idx.baselineChildren)
}

func (idx *BundlesIndex) baselineChildren(parent identity.Index) ([]identity.Index, bool, error) {
	if idx.baseline == nil {
		return nil, false, nil
	}

	return idx.baseline.Children(parent)
}

// Parents resolves child's bundle parents (IsBundledTable), recursing into
// the baseline.
func (idx *BundlesIndex) Parents(child identity.Index) ([]identity.Index, bool, error) {
	m, err := idx.parentsLazy.Get()
	if err != nil {
		return nil, false, err
	}

	return resolve(m, child, idx.baselineEnd, idx.baselineParents)
}

func (idx *BundlesIndex) baselineParents(child identity.Index) ([]identity.Index, bool, error) {
	if idx.baseline == nil {
		return nil, false, nil
	}

	return idx.baseline.Parents(child)
}

// SerializeChildren returns this archive's own parent->children map as JSON
// (spec.md I7).
func (idx *BundlesIndex) SerializeChildren() ([]byte, error) {
	return marshalJSON(stripBaseline(idx.children, idx.baselineEnd))
}

// SerializeParents returns this archive's own child->parents map as JSON
// (spec.md I7).
func (idx *BundlesIndex) SerializeParents() ([]byte, error) {
	return marshalJSON(stripBaseline(idx.parents, idx.baselineEnd))
}
