package cms

import (
	"io"

	"github.com/google/uuid"

	"github.com/mswsus/cms/internal/cmserrors"
	"github.com/mswsus/cms/internal/drivermatch"
	"github.com/mswsus/cms/internal/graph"
	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/internal/wireformat"
)

func (s *Store) requireReading() error {
	if s.state != stateReading {
		return &Error{Archive: s.path, Index: -1, Err: cmserrors.ErrNotInReadMode}
	}

	return nil
}

// IndexOf resolves id to its index, recursing across the whole delta chain
// (spec.md I1).
func (s *Store) IndexOf(id identity.Identity) (identity.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireReading(); err != nil {
		return 0, err
	}

	idx, ok := s.identities.IndexOf(id)
	if !ok {
		return 0, &Error{Archive: s.path, Identity: id.GUID.String(), Err: cmserrors.ErrUnknownIdentity}
	}

	return idx, nil
}

// IdentityOf resolves idx to its identity, recursing across the whole
// delta chain (spec.md I1).
func (s *Store) IdentityOf(idx identity.Index) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireReading(); err != nil {
		return identity.Identity{}, err
	}

	id, ok := s.identities.IdentityOf(idx)
	if !ok {
		return identity.Identity{}, &Error{Archive: s.path, Index: int32(idx), Err: cmserrors.ErrUnknownIndex}
	}

	return id, nil
}

// KindOf resolves idx's PackageKind.
func (s *Store) KindOf(idx identity.Index) (identity.Kind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireReading(); err != nil {
		return identity.KindUnknown, err
	}

	kind, ok := s.kindOf(idx)
	if !ok {
		return identity.KindUnknown, &Error{Archive: s.path, Index: int32(idx), Err: cmserrors.ErrUnknownIndex}
	}

	return kind, nil
}

// GetTitle returns idx's title, loading the Titles index on first use
// (spec.md §4.4).
func (s *Store) GetTitle(idx identity.Index) (string, error) {
	if err := s.requireReading(); err != nil {
		return "", err
	}

	title, ok, err := s.titles.Get(idx)
	if err != nil {
		return "", &Error{Archive: s.path, Index: int32(idx), Err: err}
	}

	if !ok {
		return "", &Error{Archive: s.path, Index: int32(idx), Err: cmserrors.ErrUnknownIndex}
	}

	return title, nil
}

// GetKBArticle returns idx's KB article number, or ("", false, nil) if idx
// is not a SoftwareUpdate or carries none.
func (s *Store) GetKBArticle(idx identity.Index) (string, bool, error) {
	if err := s.requireReading(); err != nil {
		return "", false, err
	}

	kb, ok, err := s.kbArticles.Get(idx)
	if err != nil {
		return "", false, &Error{Archive: s.path, Index: int32(idx), Err: err}
	}

	return kb, ok, nil
}

// GetPrerequisites returns idx's prerequisite list.
func (s *Store) GetPrerequisites(idx identity.Index) ([]wireformat.Prerequisite, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	prereqs, _, err := s.prereqs.Get(idx)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(idx), Err: err}
	}

	return prereqs, nil
}

// GetBundleChildren returns the indexes parent bundles.
func (s *Store) GetBundleChildren(parent identity.Index) ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	children, ok, err := s.bundles.Children(parent)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(parent), Err: err}
	}

	if !ok {
		return nil, &Error{Archive: s.path, Index: int32(parent), Err: cmserrors.ErrNotBundle}
	}

	return children, nil
}

// GetBundleParents returns every index that bundles child (spec.md §4.4:
// a child may be bundled by more than one parent).
func (s *Store) GetBundleParents(child identity.Index) ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	parents, ok, err := s.bundles.Parents(child)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(child), Err: err}
	}

	if !ok {
		return nil, &Error{Archive: s.path, Index: int32(child), Err: cmserrors.ErrNotBundle}
	}

	return parents, nil
}

// GetFiles returns the file records idx references.
func (s *Store) GetFiles(idx identity.Index) ([]wireformat.FileRecord, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	files, _, err := s.files.FilesOf(idx)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(idx), Err: err}
	}

	return files, nil
}

// GetFileByHash returns the file record for hash, if any update in the
// chain references it.
func (s *Store) GetFileByHash(hash string) (wireformat.FileRecord, bool, error) {
	if err := s.requireReading(); err != nil {
		return wireformat.FileRecord{}, false, err
	}

	rec, ok, err := s.files.FileByHash(hash)
	if err != nil {
		return wireformat.FileRecord{}, false, &Error{Archive: s.path, Err: err}
	}

	return rec, ok, nil
}

// IsSuperseded reports whether g has been superseded anywhere in the chain.
func (s *Store) IsSuperseded(g uuid.UUID) (bool, error) {
	if err := s.requireReading(); err != nil {
		return false, err
	}

	_, ok, err := s.supersedence.SupersederOf(g)
	if err != nil {
		return false, &Error{Archive: s.path, Identity: g.String(), Err: err}
	}

	return ok, nil
}

// GetSupersedingUpdate returns the index that superseded g.
func (s *Store) GetSupersedingUpdate(g uuid.UUID) (identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return 0, err
	}

	idx, ok, err := s.supersedence.SupersederOf(g)
	if err != nil {
		return 0, &Error{Archive: s.path, Identity: g.String(), Err: err}
	}

	if !ok {
		return 0, &Error{Archive: s.path, Identity: g.String(), Err: cmserrors.ErrNotSuperseded}
	}

	return idx, nil
}

// GetSupersededUpdates returns every GUID superseder directly supersedes —
// [Store.GetSupersedingUpdate]'s inverse (spec.md §4.4 "SupersedingUpdates:
// index -> [GUID]", §8 scenario 3).
func (s *Store) GetSupersededUpdates(superseder identity.Index) ([]uuid.UUID, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	guids, err := s.supersedence.SupersededUpdates(superseder)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(superseder), Err: err}
	}

	return guids, nil
}

// GetUpdateProductIDs returns the Product-kind indexes idx is classified
// under (spec.md §4.4, derived from its prerequisite edges).
func (s *Store) GetUpdateProductIDs(idx identity.Index) ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	products, _, err := s.productClass.Products(idx)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(idx), Err: err}
	}

	return products, nil
}

// GetUpdateClassificationIDs returns the Classification-kind indexes idx is
// classified under.
func (s *Store) GetUpdateClassificationIDs(idx identity.Index) ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	classifications, _, err := s.productClass.Classifications(idx)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(idx), Err: err}
	}

	return classifications, nil
}

// GetUpdateMetadataStream returns a lazy stream of id's raw XML blob
// (spec.md §4.9 getUpdateMetadataStream). Callers must Close it.
func (s *Store) GetUpdateMetadataStream(id identity.Identity) (io.ReadCloser, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	rc, err := s.xml.Get(id)
	if err != nil {
		return nil, &Error{Archive: s.path, Identity: id.GUID.String(), Err: err}
	}

	return rc, nil
}

// MatchDriver runs the driver matching algorithm (spec.md §4.8) over this
// archive's DriversIndex.
func (s *Store) MatchDriver(hardwareIDs []string, computerHardwareIDs []uuid.UUID, applicable drivermatch.Applicable) (drivermatch.Result, bool, error) {
	if err := s.requireReading(); err != nil {
		return drivermatch.Result{}, false, err
	}

	result, ok, err := drivermatch.Match(s.drivers, hardwareIDs, computerHardwareIDs, applicable)
	if err != nil {
		return drivermatch.Result{}, false, &Error{Archive: s.path, Err: err}
	}

	return result, ok, nil
}

// prerequisiteEdgesOf is the prerequisite graph's per-node edge resolver
// (its graph.PrerequisitesOf): each
// Prerequisite group is flattened to the union of its member GUIDs, each
// resolved to an index where known (an unresolved GUID — typically a
// category anchor with no update node of its own — contributes no edge).
func (s *Store) prerequisiteEdgesOf(idx identity.Index) ([]identity.Index, error) {
	prereqs, _, err := s.prereqs.Get(idx)
	if err != nil {
		return nil, err
	}

	var out []identity.Index

	for _, p := range prereqs {
		for _, g := range p.GUIDs {
			if wireformat.IsZeroGUID(g) {
				continue
			}

			if target, ok := s.identities.IndexOf(identity.Identity{GUID: g}); ok {
				out = append(out, target)
			}
		}
	}

	return out, nil
}

// graphUniverse returns every index known across the whole delta chain.
func (s *Store) graphUniverse() []identity.Index {
	n := s.identities.Count()
	universe := make([]identity.Index, 0, n)

	for i := identity.Index(0); i < n; i++ {
		universe = append(universe, i)
	}

	return universe
}

func (s *Store) graphInstance() *graph.Graph {
	s.graphOnce.Do(func() {
		s.graphObj = graph.New(s.graphUniverse(), s.prerequisiteEdgesOf)
	})

	return s.graphObj
}

// GraphPrerequisitesOf returns idx's direct prerequisite-graph edges.
func (s *Store) GraphPrerequisitesOf(idx identity.Index) ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	out, err := s.graphInstance().Prerequisites(idx)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(idx), Err: err}
	}

	return out, nil
}

// GraphDependentsOf returns every index that names idx as a direct
// prerequisite.
func (s *Store) GraphDependentsOf(idx identity.Index) ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	out, err := s.graphInstance().Dependents(idx)
	if err != nil {
		return nil, &Error{Archive: s.path, Index: int32(idx), Err: err}
	}

	return out, nil
}

// GraphRoots returns every index with no prerequisites.
func (s *Store) GraphRoots() ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	out, err := s.graphInstance().Roots()
	if err != nil {
		return nil, &Error{Archive: s.path, Err: err}
	}

	return out, nil
}

// GraphLeaves returns every index nothing else depends on.
func (s *Store) GraphLeaves() ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	out, err := s.graphInstance().Leaves()
	if err != nil {
		return nil, &Error{Archive: s.path, Err: err}
	}

	return out, nil
}

// GraphInterior returns every index that both has prerequisites and is
// itself a prerequisite of something else.
func (s *Store) GraphInterior() ([]identity.Index, error) {
	if err := s.requireReading(); err != nil {
		return nil, err
	}

	out, err := s.graphInstance().Interior()
	if err != nil {
		return nil, &Error{Archive: s.path, Err: err}
	}

	return out, nil
}

// Filter returns the query filter recorded at write time, if any.
func (s *Store) Filter() (Filter, bool) {
	if s.meta.Filter == nil {
		return Filter{}, false
	}

	return *s.meta.Filter, true
}

// CategoriesAnchor returns the GUID every stored category hangs off of.
func (s *Store) CategoriesAnchor() string {
	return s.meta.CategoriesAnchor
}

// Export is not implemented by this store: it always returns an *Error
// wrapping cmserrors.ErrNotImplemented (spec.md §4.9 export, §1
// Non-goals). The CMS only offers the read-side queries above; turning
// them into a specific server-config wire format is left to a downstream
// collaborator.
func (s *Store) Export(filter Filter, w io.Writer, format string, serverConfig any) error {
	return &Error{Archive: s.path, Err: cmserrors.ErrNotImplemented}
}
