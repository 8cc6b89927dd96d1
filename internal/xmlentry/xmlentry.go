// Package xmlentry implements the XML Entry Store (spec.md C2): each
// record's raw XML is written to a single sharded archive entry and read
// back as a lazy stream. A delta archive delegates reads for baseline-owned
// identities to the baseline's store; it never rewrites baseline XML
// (spec.md §4.3).
package xmlentry

import (
	"fmt"
	"io"

	"github.com/mswsus/cms/internal/cmserrors"
	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/pkg/archive"
)

// Path returns the archive entry name for id: "<shard>/<guid>-<revision>.xml"
// (spec.md I3, §6).
func Path(id identity.Identity) string {
	return fmt.Sprintf("%d/%s-%d.xml", id.Shard(), id.GUID.String(), id.Revision)
}

// Store writes and reads XML entries for one archive, delegating misses to
// a baseline store.
type Store struct {
	writer   *archive.Writer // nil once sealed / when opened for reading
	reader   *archive.Reader // nil while writing
	baseline *Store
}

// NewWritingStore wraps an archive.Writer for the Writing state.
func NewWritingStore(w *archive.Writer) *Store {
	return &Store{writer: w}
}

// NewReadingStore wraps an archive.Reader for the Reading state, optionally
// chained to a baseline store.
func NewReadingStore(r *archive.Reader, baseline *Store) *Store {
	return &Store{reader: r, baseline: baseline}
}

// Put writes id's raw XML to its sharded entry. Writing state only.
func (s *Store) Put(id identity.Identity, xml []byte) error {
	if s.writer == nil {
		return fmt.Errorf("xmlentry: Put(%s): %w", id.GUID, cmserrors.ErrNotInWriteMode)
	}

	return s.writer.PutEntry(Path(id), xml)
}

// Get returns a lazy stream of id's raw XML, recursing into the baseline if
// this archive does not itself hold the entry. Reading state only.
func (s *Store) Get(id identity.Identity) (io.ReadCloser, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("xmlentry: Get(%s): %w", id.GUID, cmserrors.ErrNotInReadMode)
	}

	path := Path(id)

	if s.reader.HasEntry(path) {
		return s.reader.GetEntry(path)
	}

	if s.baseline != nil {
		return s.baseline.Get(id)
	}

	return nil, fmt.Errorf("xmlentry: Get(%s): %w", id.GUID, cmserrors.ErrUnknownIdentity)
}
