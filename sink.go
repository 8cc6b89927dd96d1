package cms

import (
	"fmt"

	"github.com/mswsus/cms/internal/checksum"
	"github.com/mswsus/cms/internal/cmserrors"
	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/internal/wireformat"
)

// SetQueryFilter records the producer's query scope (spec.md §4.9
// setQueryFilter): never interpreted by the store itself, just carried
// into index.json so a reopened archive remembers what it was built for.
func (s *Store) SetQueryFilter(filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateWriting {
		return &Error{Archive: s.path, Index: -1, Err: cmserrors.ErrNotInWriteMode}
	}

	f := filter
	s.filter = &f

	return nil
}

// SetCategoriesAnchor records the GUID (or empty, meaning "no anchor") that
// every stored category hangs off of (spec.md §4.9 setCategoriesAnchor).
func (s *Store) SetCategoriesAnchor(anchor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateWriting {
		return &Error{Archive: s.path, Index: -1, Err: cmserrors.ErrNotInWriteMode}
	}

	s.categoriesAnchor = anchor

	return nil
}

// SetCredentials records the upstream source/account the records in this
// archive were fetched with (spec.md §4.9 setCredentials, §6).
func (s *Store) SetCredentials(source, accountName, accountGUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateWriting {
		return &Error{Archive: s.path, Index: -1, Err: cmserrors.ErrNotInWriteMode}
	}

	s.upstreamSource = source
	s.upstreamAccountName = accountName
	s.upstreamAccountGUID = accountGUID

	return nil
}

// Progress returns the channel commit phase events are delivered on.
// Closed once Commit returns (spec.md §6).
func (s *Store) Progress() <-chan ProgressEvent {
	return s.progress.ch
}

// AddFile notifies the store that fileURL's bytes are available elsewhere
// (spec.md §4.9 addFile). The CMS never fetches or hashes payload bytes
// itself (Non-goals); a file's hash, size, and URL are the ones already
// embedded in its owning update's XML and reach the Files index through
// AddUpdates -> FilesIndex.PutFiles, which is where the hash-based
// deduplication spec.md §4.4 describes actually happens. AddFile exists so
// a producer can report URL availability without that implying anything
// about whether the CMS has (or ever will) fetch it.
func (s *Store) AddFile(fileURL string) {
	s.logger().WithField("component", "cms.Sink").WithField("url", fileURL).Debug("file url registered")
}

// AddUpdates ingests a batch of over-the-wire records in one locked step,
// parsing each record's XML (inflating it first if compressed) and
// populating every secondary index (spec.md §4.9 addUpdates).
func (s *Store) AddUpdates(records []wireformat.OverTheWireRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateWriting {
		return &Error{Archive: s.path, Index: -1, Err: cmserrors.ErrNotInWriteMode}
	}

	s.progress.emit(TagHashMetadataStart)

	type parsed struct {
		idx identity.Index
		rec wireformat.Record
	}

	results := make([]parsed, 0, len(records))

	for _, otw := range records {
		xml, err := otw.XMLBytes()
		if err != nil {
			return &Error{Archive: s.path, Identity: otw.Identity.GUID.String(), Err: err}
		}

		idx, added := s.identities.Add(otw.Identity)
		if !added {
			continue
		}

		s.kinds[idx] = otw.Kind

		rec, err := wireformat.Parse(otw.Identity, otw.Kind, xml)
		if err != nil {
			return &Error{Archive: s.path, Identity: otw.Identity.GUID.String(), Err: err}
		}

		if err := s.xml.Put(otw.Identity, xml); err != nil {
			return &Error{Archive: s.path, Identity: otw.Identity.GUID.String(), Err: err}
		}

		results = append(results, parsed{idx: idx, rec: rec})
	}

	s.progress.emit(TagHashMetadataEnd)

	s.progress.emit(TagIndexingTitlesStart)

	for _, p := range results {
		s.titles.Put(p.idx, p.rec.Title)

		if p.rec.Kind == identity.KindSoftwareUpdate && p.rec.KBArticle != "" {
			s.kbArticles.Put(p.idx, p.rec.KBArticle)
		}
	}

	s.progress.emit(TagIndexingTitlesEnd)

	s.progress.emit(TagIndexingBundlesStart)

	for _, p := range results {
		if len(p.rec.BundledChildren) == 0 {
			continue
		}

		children := make([]identity.Index, 0, len(p.rec.BundledChildren))

		for _, childID := range p.rec.BundledChildren {
			childIdx, ok := s.identities.IndexOf(childID)
			if !ok {
				s.bundles.MarkPending(childID.GUID, p.idx)
				continue
			}

			children = append(children, childIdx)
		}

		if len(children) > 0 {
			s.bundles.PutBundle(p.idx, children)
		}
	}

	// A record ingested in this batch may be the still-unresolved child of
	// a bundle parent ingested in an earlier AddUpdates call; link it into
	// that parent's children now that its index is known.
	for _, p := range results {
		s.bundles.ResolvePending(p.rec.Identity.GUID, p.idx)
	}

	s.progress.emit(TagIndexingBundlesEnd)

	s.progress.emit(TagIndexingPrerequisitesStart)

	for _, p := range results {
		if len(p.rec.Prerequisites) > 0 {
			s.prereqs.Put(p.idx, p.rec.Prerequisites)
		}
	}

	s.progress.emit(TagIndexingPrerequisitesEnd)

	total := len(results)

	s.progress.emit(TagIndexingCategoriesStart)

	for i, p := range results {
		if !p.rec.Kind.IsCategory() {
			continue
		}

		s.progress.emitProgress(TagIndexingCategoriesProgress, i+1, total)
	}

	for _, p := range results {
		products, classifications := s.deriveProductClass(p.rec)
		if len(products) > 0 || len(classifications) > 0 {
			s.productClass.PutDerived(p.idx, products, classifications)
		}
	}

	s.progress.emit(TagIndexingCategoriesEnd)

	s.progress.emit(TagProcessSupersedeDataStart)

	for _, p := range results {
		if len(p.rec.SupersededGUIDs) > 0 {
			s.supersedence.PutSuperseded(p.idx, p.rec.SupersededGUIDs)
		}
	}

	s.progress.emit(TagProcessSupersedeDataEnd)

	s.progress.emit(TagIndexingFilesStart)

	for _, p := range results {
		if len(p.rec.Files) > 0 {
			s.files.PutFiles(p.idx, p.rec.Files)
		}
	}

	s.progress.emit(TagIndexingFilesEnd)

	s.progress.emit(TagIndexingDriversStart)

	for _, p := range results {
		if len(p.rec.DriverMetadata) > 0 {
			s.drivers.PutDriverMetadata(p.idx, p.rec.DriverMetadata)
		}
	}

	s.progress.emit(TagIndexingDriversEnd)

	s.progress.emit(TagPrerequisiteGraphUpdateStart)
	s.progress.emitProgress(TagPrerequisiteGraphProgress, total, total)
	s.progress.emit(TagPrerequisiteGraphUpdateEnd)

	return nil
}

// AddUpdate ingests a single over-the-wire record (spec.md §4.9 addUpdate).
func (s *Store) AddUpdate(record wireformat.OverTheWireRecord) error {
	return s.AddUpdates([]wireformat.OverTheWireRecord{record})
}

// deriveProductClass walks rec's prerequisites looking for GUIDs already
// known as Product or Classification categories, classifying rec under
// them (spec.md §4.4: product/classification membership is derived from
// prerequisite edges onto category nodes, not a separate field on the
// record).
func (s *Store) deriveProductClass(rec wireformat.Record) (products, classifications []identity.Index) {
	for _, p := range rec.Prerequisites {
		for _, g := range p.GUIDs {
			if wireformat.IsZeroGUID(g) {
				continue
			}

			idx, ok := s.identities.IndexOf(identity.Identity{GUID: g})
			if !ok {
				continue
			}

			switch kind, _ := s.kindOf(idx); kind {
			case identity.KindProduct:
				products = append(products, idx)
			case identity.KindClassification:
				classifications = append(classifications, idx)
			}
		}
	}

	return products, classifications
}

// Commit seals the archive: refuses if any bundle reference is still
// unresolved (spec.md I5), writes every secondary index blob and
// index.json, finishes the underlying zip writer, and transitions the
// Store to Sealed. The Store must be reopened with [Open] to be queried.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateWriting {
		return &Error{Archive: s.path, Index: -1, Err: cmserrors.ErrNotInWriteMode}
	}

	defer s.progress.close()

	if pending := s.bundles.PendingBundledUpdates(); len(pending) > 0 {
		return &Error{Archive: s.path, Identity: pending[0].String(), Err: cmserrors.ErrUnresolvedBundles}
	}

	ownEntries := s.identities.OwnEntries()
	sum := checksum.Compute(ownEntries)

	var baselineChecksum string
	var deltaIndex uint64

	if s.baseline != nil {
		var err error

		baselineChecksum, err = s.baseline.Checksum()
		if err != nil {
			return &Error{Archive: s.path, Err: err}
		}

		_, deltaIndex = parseArchiveFilename(s.path)
	}

	meta := indexJSON{
		Version:              archiveVersion,
		Checksum:             sum,
		BaselineChecksum:     baselineChecksum,
		BaselineIndexesEnd:   s.identities.BaselineIndexesEnd(),
		DeltaIndex:           deltaIndex,
		Filter:               s.filter,
		CategoriesAnchor:     s.categoriesAnchor,
		UpstreamSource:       s.upstreamSource,
		UpstreamAccountName:  s.upstreamAccountName,
		UpstreamAccountGUID:  s.upstreamAccountGUID,
		IdentityAndIndexList: ownEntries,
		UpdateTypeMap:        s.kinds,
	}

	blobs := []struct {
		name string
		ser  func() ([]byte, error)
	}{
		{blobTitles, s.titles.Serialize},
		{blobKBArticles, s.kbArticles.Serialize},
		{blobPrerequisites, s.prereqs.Serialize},
		{blobBundles, s.bundles.SerializeChildren},
		{blobBundlesReverse, s.bundles.SerializeParents},
		{blobProducts, s.productClass.SerializeProducts},
		{blobClassification, s.productClass.SerializeClassifications},
		{blobFilesByHash, s.files.SerializeByHash},
		{blobFilesByUpdate, s.files.SerializeByUpdate},
		{blobSuperseded, s.supersedence.Serialize},
		{blobDriversMetadata, s.drivers.SerializeStore},
		{blobDriversDriverToIDs, s.drivers.SerializeDriverToIDs},
		{blobDriversHardwareID, s.drivers.SerializeHardwareID},
	}

	for _, b := range blobs {
		data, err := b.ser()
		if err != nil {
			return &Error{Archive: s.path, Err: fmt.Errorf("serializing %s: %w", b.name, err)}
		}

		if err := s.writer.PutEntry(b.name, data); err != nil {
			return &Error{Archive: s.path, Err: cmserrors.WrapIO("writing "+b.name, err)}
		}
	}

	indexData, err := marshalIndexJSON(meta)
	if err != nil {
		return &Error{Archive: s.path, Err: err}
	}

	if err := s.writer.PutEntry(blobIndex, indexData); err != nil {
		return &Error{Archive: s.path, Err: cmserrors.WrapIO("writing index blob", err)}
	}

	if err := s.writer.Finish(); err != nil {
		return &Error{Archive: s.path, Err: cmserrors.WrapIO("sealing archive", err)}
	}

	s.state = stateSealed
	s.done = true

	if s.lock != nil {
		_ = s.lock.Close()
		s.lock = nil
	}

	return nil
}

// Abort discards an in-progress Writing-state archive without publishing
// it.
func (s *Store) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateWriting {
		return &Error{Archive: s.path, Index: -1, Err: cmserrors.ErrNotInWriteMode}
	}

	defer s.progress.close()

	s.done = true
	s.state = stateSealed

	err := s.writer.Abort()

	if s.lock != nil {
		_ = s.lock.Close()
		s.lock = nil
	}

	return cmserrors.WrapIO("aborting archive", err)
}
