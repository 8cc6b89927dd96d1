package secindex

import (
	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/internal/wireformat"
	"github.com/mswsus/cms/pkg/archive"
)

// FilesIndex maps a content hash to its file record, and an update index to
// the hashes of the files it references (spec.md §4.4 "Files": content is
// deduplicated by hash across updates).
type FilesIndex struct {
	baselineEnd identity.Index
	baseline    *FilesIndex

	byHash    map[string]wireformat.FileRecord    // Writing state
	byUpdate  map[identity.Index][]string         // Writing state

	byHashLazy   *Lazy[map[string]wireformat.FileRecord]
	byUpdateLazy *Lazy[map[identity.Index][]string]
}

// NewFilesIndexForWriting creates an empty index for the Writing state.
func NewFilesIndexForWriting() *FilesIndex {
	return &FilesIndex{
		byHash:   make(map[string]wireformat.FileRecord),
		byUpdate: make(map[identity.Index][]string),
	}
}

// NewFilesIndexForReading creates an index for the Reading state.
func NewFilesIndexForReading(reader *archive.Reader, byHashBlob, byUpdateBlob string, baselineEnd identity.Index, baseline *FilesIndex) *FilesIndex {
	idx := &FilesIndex{baselineEnd: baselineEnd, baseline: baseline}
	idx.byHashLazy = NewLazy(func() (map[string]wireformat.FileRecord, error) {
		return loadJSON[map[string]wireformat.FileRecord](reader, byHashBlob)
	})
	idx.byUpdateLazy = NewLazy(func() (map[identity.Index][]string, error) {
		return loadJSON[map[identity.Index][]string](reader, byUpdateBlob)
	})

	return idx
}

// PutFiles records i's file list. Writing state only. Each file's hash is
// deduplicated into the shared by-hash table.
func (idx *FilesIndex) PutFiles(i identity.Index, files []wireformat.FileRecord) {
	hashes := make([]string, 0, len(files))

	for _, f := range files {
		idx.byHash[f.Hash] = f
		hashes = append(hashes, f.Hash)
	}

	idx.byUpdate[i] = hashes
}

// FileByHash resolves a single file record by its content hash, recursing
// into the baseline on miss. Hashes are content-addressed so there is no
// index-range restriction on the recursion.
func (idx *FilesIndex) FileByHash(hash string) (wireformat.FileRecord, bool, error) {
	m, err := idx.byHashLazy.Get()
	if err != nil {
		return wireformat.FileRecord{}, false, err
	}

	if f, ok := m[hash]; ok {
		return f, true, nil
	}

	if idx.baseline != nil {
		return idx.baseline.FileByHash(hash)
	}

	return wireformat.FileRecord{}, false, nil
}

// FilesOf resolves i's file records, recursing into the baseline on miss.
func (idx *FilesIndex) FilesOf(i identity.Index) ([]wireformat.FileRecord, bool, error) {
	m, err := idx.byUpdateLazy.Get()
	if err != nil {
		return nil, false, err
	}

	hashes, ok, err := resolve(m, i, idx.baselineEnd, idx.baselineHashesOf)
	if err != nil || !ok {
		return nil, ok, err
	}

	out := make([]wireformat.FileRecord, 0, len(hashes))

	for _, h := range hashes {
		f, found, err := idx.FileByHash(h)
		if err != nil {
			return nil, false, err
		}

		if found {
			out = append(out, f)
		}
	}

	return out, true, nil
}

func (idx *FilesIndex) baselineHashesOf(i identity.Index) ([]string, bool, error) {
	if idx.baseline == nil {
		return nil, false, nil
	}

	files, ok, err := idx.baseline.FilesOf(i)
	if err != nil || !ok {
		return nil, ok, err
	}

	hashes := make([]string, len(files))
	for n, f := range files {
		hashes[n] = f.Hash
	}

	return hashes, true, nil
}

// SerializeByHash returns this archive's own hash->record entries as JSON.
// The by-hash table is content-addressed, not index-keyed, so every entry
// introduced while writing this archive is its own regardless of
// BaselineIndexesEnd.
func (idx *FilesIndex) SerializeByHash() ([]byte, error) {
	return marshalJSON(idx.byHash)
}

// SerializeByUpdate returns this archive's own index->hashes entries as
// JSON (spec.md I7).
func (idx *FilesIndex) SerializeByUpdate() ([]byte, error) {
	return marshalJSON(stripBaseline(idx.byUpdate, idx.baselineEnd))
}
