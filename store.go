package cms

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mswsus/cms/internal/checksum"
	"github.com/mswsus/cms/internal/cmserrors"
	"github.com/mswsus/cms/internal/cmsconfig"
	"github.com/mswsus/cms/internal/graph"
	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/internal/secindex"
	"github.com/mswsus/cms/internal/xmlentry"
	"github.com/mswsus/cms/pkg/archive"
	"github.com/mswsus/cms/pkg/fs"
)

// lifecycle is the archive's position in spec.md §3's three-state model.
type lifecycle int

const (
	stateWriting lifecycle = iota
	stateSealed
	stateReading
)

// Store is one archive: either open for append (Writing), committed but
// not yet reopened (Sealed), or opened from disk for queries (Reading). A
// delta Store holds a strong reference to its baseline (spec.md §5: "the
// baseline outlives the delta").
type Store struct {
	mu sync.Mutex // guards every Writing-state field (spec.md §5)

	fsys fs.FS
	path string
	log  logrus.FieldLogger

	state    lifecycle
	baseline *Store

	writer *archive.Writer // non-nil only while Writing
	reader *archive.Reader // non-nil only while Reading
	lock   *fs.Lock        // non-nil only while Writing (cross-process exclusion)

	identities *identity.Table
	xml        *xmlentry.Store

	titles       *secindex.StringIndex
	kbArticles   *secindex.StringIndex
	prereqs      *secindex.PrerequisitesIndex
	bundles      *secindex.BundlesIndex
	files        *secindex.FilesIndex
	supersedence *secindex.SupersedenceIndex
	productClass *secindex.ProductClassIndex
	drivers      *secindex.DriversIndex

	kinds            map[identity.Index]identity.Kind
	kindsBaselineEnd identity.Index

	// Writing-state only.
	filter              *Filter
	categoriesAnchor    string
	upstreamSource      string
	upstreamAccountName string
	upstreamAccountGUID string
	progress            *progressSink
	done                bool // true once Commit or Abort has run

	// Reading-state only: the eagerly-deserialized index.json.
	meta indexJSON

	graphOnce sync.Once
	graphObj  *graph.Graph
}

func (s *Store) logger() logrus.FieldLogger {
	if s.log != nil {
		return s.log
	}

	return logrus.StandardLogger()
}

// Create opens a brand-new archive for writing at path. If baseline is
// non-nil it must be a Reading-state Store (typically just reopened); the
// new delta copies baseline's identity/index and kind tables by reference
// and starts every secondary index empty (spec.md §4.6). Create takes a
// non-blocking exclusive lock on path+".lock" (spec.md §5: Writing is
// single-writer); a concurrent Create against the same path fails with
// [cmserrors.ErrArchiveLocked].
func Create(fsys fs.FS, cfg cmsconfig.Config, path string, baseline *Store) (*Store, error) {
	if baseline != nil && baseline.state != stateReading {
		return nil, &Error{Archive: path, Index: -1, Err: fmt.Errorf("%w: baseline must be opened for reading", cmserrors.ErrNotInReadMode)}
	}

	lock, err := fs.NewLocker(fsys).TryLock(path + ".lock")
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, &Error{Archive: path, Index: -1, Err: cmserrors.ErrArchiveLocked}
		}

		return nil, &Error{Archive: path, Index: -1, Err: cmserrors.WrapIO("locking archive", err)}
	}

	w, err := archive.NewWriterLevel(fsys, path, cfg.CompressionLevel)
	if err != nil {
		_ = lock.Close()
		return nil, &Error{Archive: path, Index: -1, Err: cmserrors.WrapIO("creating archive", err)}
	}

	s := &Store{
		fsys:     fsys,
		path:     path,
		log:      cfg.Logger,
		state:    stateWriting,
		baseline: baseline,
		writer:   w,
		lock:     lock,
		progress: newProgressSink(),
		kinds:    make(map[identity.Index]identity.Kind),
	}

	if baseline != nil {
		s.identities = identity.NewDeltaTable(baseline.identities)
		s.kindsBaselineEnd = s.identities.BaselineIndexesEnd()
	} else {
		s.identities = identity.NewTable()
		s.kindsBaselineEnd = -1
	}

	s.xml = xmlentry.NewWritingStore(w)
	s.titles = secindex.NewStringIndexForWriting()
	s.kbArticles = secindex.NewStringIndexForWriting()
	s.prereqs = secindex.NewPrerequisitesIndexForWriting()
	s.bundles = secindex.NewBundlesIndexForWriting()
	s.files = secindex.NewFilesIndexForWriting()
	s.supersedence = secindex.NewSupersedenceIndexForWriting()
	s.productClass = secindex.NewProductClassIndexForWriting()
	s.drivers = secindex.NewDriversIndexForWriting()

	s.logger().WithField("component", "cms.Store").WithField("archive", path).Info("opened for writing")

	return s, nil
}

// Open opens a sealed archive for reading (spec.md §3 Sealed -> Reading,
// §4.6 delta discovery). If the archive's index.json names a
// BaselineChecksum, Open recurses to open and verify the baseline chain
// first.
func Open(fsys fs.FS, cfg cmsconfig.Config, path string) (*Store, error) {
	reader, err := archive.Open(fsys, path)
	if err != nil {
		if errors.Is(err, archive.ErrInvalidArchive) {
			return nil, &Error{Archive: path, Index: -1, Err: wrapInvalidArchive(err)}
		}

		return nil, &Error{Archive: path, Index: -1, Err: cmserrors.WrapIO("opening archive", err)}
	}

	if !reader.HasEntry(blobIndex) {
		_ = reader.Close()
		return nil, &Error{Archive: path, Index: -1, Err: cmserrors.ErrInvalidArchive}
	}

	raw, err := reader.GetEntryBytes(blobIndex)
	if err != nil {
		_ = reader.Close()
		return nil, &Error{Archive: path, Index: -1, Err: cmserrors.WrapIO("reading index blob", err)}
	}

	meta, err := unmarshalIndexJSON(raw)
	if err != nil {
		_ = reader.Close()
		return nil, &Error{Archive: path, Index: -1, Err: fmt.Errorf("%w: %v", cmserrors.ErrInvalidArchive, err)}
	}

	if meta.Version != archiveVersion {
		_ = reader.Close()
		return nil, &Error{Archive: path, Index: -1, Err: fmt.Errorf("%w: unknown version %d", cmserrors.ErrInvalidArchive, meta.Version)}
	}

	_, wantSuffixDelta := parseArchiveFilename(path)
	if wantSuffixDelta != meta.DeltaIndex {
		_ = reader.Close()
		return nil, &Error{Archive: path, Index: -1, Err: cmserrors.ErrCorruptChainName}
	}

	var baseline *Store

	if meta.BaselineChecksum != "" {
		baselinePath, ok := baselinePathFor(path)
		if !ok {
			_ = reader.Close()
			return nil, &Error{Archive: path, Index: -1, Err: cmserrors.ErrMissingBaseline}
		}

		if exists, statErr := fsys.Exists(baselinePath); statErr != nil || !exists {
			_ = reader.Close()
			return nil, &Error{Archive: baselinePath, Index: -1, Err: cmserrors.ErrMissingBaseline}
		}

		baseline, err = Open(fsys, cfg, baselinePath)
		if err != nil {
			_ = reader.Close()
			return nil, err
		}

		baselineChecksum, checksumErr := baseline.Checksum()
		if checksumErr != nil {
			_ = reader.Close()
			return nil, &Error{Archive: path, Index: -1, Err: checksumErr}
		}

		if baselineChecksum != meta.BaselineChecksum {
			_ = reader.Close()
			return nil, &Error{Archive: path, Index: -1, Err: cmserrors.ErrBaselineMismatch}
		}
	}

	s := &Store{
		fsys:             fsys,
		path:             path,
		log:              cfg.Logger,
		state:            stateReading,
		baseline:         baseline,
		reader:           reader,
		meta:             meta,
		kindsBaselineEnd: meta.BaselineIndexesEnd,
		kinds:            meta.UpdateTypeMap,
	}

	if s.kinds == nil {
		s.kinds = make(map[identity.Index]identity.Kind)
	}

	s.identities = identity.NewTable()
	if baseline != nil {
		s.identities = identity.NewDeltaTable(baseline.identities)
	}

	s.identities.LoadEntries(meta.IdentityAndIndexList)

	var baselineXML *xmlentry.Store
	if baseline != nil {
		baselineXML = baseline.xml
	}

	s.xml = xmlentry.NewReadingStore(reader, baselineXML)

	var baselineTitles *secindex.StringIndex
	var baselineKB *secindex.StringIndex
	var baselinePrereqs *secindex.PrerequisitesIndex
	var baselineBundles *secindex.BundlesIndex
	var baselineFiles *secindex.FilesIndex
	var baselineSuper *secindex.SupersedenceIndex
	var baselineProductClass *secindex.ProductClassIndex
	var baselineDrivers *secindex.DriversIndex

	if baseline != nil {
		baselineTitles = baseline.titles
		baselineKB = baseline.kbArticles
		baselinePrereqs = baseline.prereqs
		baselineBundles = baseline.bundles
		baselineFiles = baseline.files
		baselineSuper = baseline.supersedence
		baselineProductClass = baseline.productClass
		baselineDrivers = baseline.drivers
	}

	s.titles = secindex.NewStringIndexForReading(reader, blobTitles, meta.BaselineIndexesEnd, baselineTitles)
	s.kbArticles = secindex.NewStringIndexForReading(reader, blobKBArticles, meta.BaselineIndexesEnd, baselineKB)
	s.prereqs = secindex.NewPrerequisitesIndexForReading(reader, blobPrerequisites, meta.BaselineIndexesEnd, baselinePrereqs)
	s.bundles = secindex.NewBundlesIndexForReading(reader, blobBundles, blobBundlesReverse, meta.BaselineIndexesEnd, baselineBundles)
	s.files = secindex.NewFilesIndexForReading(reader, blobFilesByHash, blobFilesByUpdate, meta.BaselineIndexesEnd, baselineFiles)
	s.supersedence = secindex.NewSupersedenceIndexForReading(reader, blobSuperseded, meta.BaselineIndexesEnd, baselineSuper)
	s.productClass = secindex.NewProductClassIndexForReading(reader, blobProducts, blobClassification, meta.BaselineIndexesEnd, baselineProductClass)
	s.drivers = secindex.NewDriversIndexForReading(reader, blobDriversMetadata, blobDriversDriverToIDs, blobDriversHardwareID, meta.BaselineIndexesEnd, baselineDrivers)

	s.logger().WithField("component", "cms.Store").WithField("archive", path).Info("opened for reading")

	return s, nil
}

func wrapInvalidArchive(err error) error {
	return fmt.Errorf("%w: %v", cmserrors.ErrInvalidArchive, err)
}

// Close releases the archive's file handle (and, transitively, its whole
// baseline chain).
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			return err
		}
	}

	if s.lock != nil {
		if err := s.lock.Close(); err != nil {
			return err
		}

		s.lock = nil
	}

	if s.baseline != nil {
		return s.baseline.Close()
	}

	return nil
}

// Checksum returns this archive's own Checksum (spec.md I6), computing it
// on demand while Writing (i.e. before Commit has run) or returning the
// value recorded in index.json once Sealed/Reading.
func (s *Store) Checksum() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateWriting {
		return checksum.Compute(s.identities.OwnEntries()), nil
	}

	return s.meta.Checksum, nil
}

// kindOf resolves idx's PackageKind, recursing into the baseline.
func (s *Store) kindOf(idx identity.Index) (identity.Kind, bool) {
	if k, ok := s.kinds[idx]; ok {
		return k, true
	}

	if idx <= s.kindsBaselineEnd && s.baseline != nil {
		return s.baseline.kindOf(idx)
	}

	return identity.KindUnknown, false
}
