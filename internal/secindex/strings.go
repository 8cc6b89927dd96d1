package secindex

import (
	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/pkg/archive"
)

// StringIndex backs the Titles and KB-article secondary indexes: both are a
// simple index -> string map (spec.md §4.4 "Titles / KB articles").
type StringIndex struct {
	baselineEnd identity.Index
	baseline    *StringIndex

	own  map[identity.Index]string      // Writing state
	lazy *Lazy[map[identity.Index]string] // Reading state
}

// NewStringIndexForWriting creates an empty index for the Writing state.
func NewStringIndexForWriting() *StringIndex {
	return &StringIndex{own: make(map[identity.Index]string)}
}

// NewStringIndexForReading creates an index for the Reading state that
// lazily loads blobName from reader on first Get, chained to baseline.
func NewStringIndexForReading(reader *archive.Reader, blobName string, baselineEnd identity.Index, baseline *StringIndex) *StringIndex {
	idx := &StringIndex{baselineEnd: baselineEnd, baseline: baseline}
	idx.lazy = NewLazy(func() (map[identity.Index]string, error) {
		return loadJSON[map[identity.Index]string](reader, blobName)
	})

	return idx
}

// Put records value for i. Writing state only.
func (idx *StringIndex) Put(i identity.Index, value string) {
	idx.own[i] = value
}

// Get resolves i, recursing into the baseline on a miss within its range.
func (idx *StringIndex) Get(i identity.Index) (string, bool, error) {
	m, err := idx.lazy.Get()
	if err != nil {
		return "", false, err
	}

	return resolve(m, i, idx.baselineEnd, idx.baselineGet)
}

func (idx *StringIndex) baselineGet(i identity.Index) (string, bool, error) {
	if idx.baseline == nil {
		return "", false, nil
	}

	return idx.baseline.Get(i)
}

// Serialize returns this archive's own entries (keys > baselineEnd,
// spec.md I7) as JSON.
func (idx *StringIndex) Serialize() ([]byte, error) {
	return marshalJSON(stripBaseline(idx.own, idx.baselineEnd))
}
