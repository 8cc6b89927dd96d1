// Package archive implements the Archive I/O component (spec.md C3): a
// compressed container of named byte entries. Entries are written
// sequentially during Writing and read by name (random access) once the
// archive is Sealed (spec.md §3 "Lifecycles").
//
// The container format is archive/zip (the spec's delta filenames are
// literally ".zip"). The deflate compressor is swapped for
// github.com/klauspost/compress/flate via zip.RegisterCompressor: WSUS
// metadata XML blobs compress well and are ingested in bulk, and
// klauspost/compress's flate is a faster drop-in for exactly that shape of
// workload.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	katomic "github.com/natefinch/atomic"
	kflate "github.com/klauspost/compress/flate"

	"github.com/mswsus/cms/pkg/fs"
)

func init() {
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return kflate.NewWriter(w, kflate.DefaultCompression)
	})
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return kflate.NewReader(r)
	})
}

// ErrInvalidArchive indicates a truncated/malformed zip container. pkg/archive
// is a generic container layer and deliberately does not import
// internal/cmserrors; callers in the cms package translate this into
// cmserrors.ErrInvalidArchive (via %w wrapping) when surfacing it on the
// public API (spec.md §4.1, §7).
var ErrInvalidArchive = errors.New("invalid archive")

// Writer appends named entries to a new archive file. Writes are sequential;
// [Writer.Finish] seals the archive and makes it visible at path.
//
// Not safe for concurrent use: callers serialize access under their own
// mutex (spec.md §5: "Writing-state sink serializes writes... under a
// single mutex").
type Writer struct {
	fsys    fs.FS
	path    string
	tmpPath string
	tmpFile fs.File
	zw      *zip.Writer
	done    bool
}

// NewWriter creates a new archive writer at klauspost/compress's default
// compression level. The archive is built at a temporary path alongside
// the destination and only published to path by [Writer.Finish].
func NewWriter(fsys fs.FS, path string) (*Writer, error) {
	return NewWriterLevel(fsys, path, kflate.DefaultCompression)
}

// NewWriterLevel is [NewWriter] with an explicit klauspost/compress/flate
// compression level, overriding the zip.Deflate compressor for this writer
// only (the process-wide registration from this package's init stays at
// the default, since zip.Writer.RegisterCompressor scopes the override to
// one *zip.Writer — spec.md §6 config "compression_level").
func NewWriterLevel(fsys fs.FS, path string, level int) (*Writer, error) {
	tmpPath := path + ".building"

	f, err := fsys.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("archive: creating build file: %w", err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return kflate.NewWriter(w, level)
	})

	return &Writer{
		fsys:    fsys,
		path:    path,
		tmpPath: tmpPath,
		tmpFile: f,
		zw:      zw,
	}, nil
}

// PutEntry writes one named entry with the given bytes.
func (w *Writer) PutEntry(name string, data []byte) error {
	return w.PutEntryStream(name, bytes.NewReader(data))
}

// PutEntryStream writes one named entry, streaming from r. Used for large
// index blobs (spec.md §4.1: "Index blobs may be large; the I/O layer
// streams them").
func (w *Writer) PutEntryStream(name string, r io.Reader) error {
	if w.done {
		return fmt.Errorf("archive: PutEntry(%s): writer already finished", name)
	}

	entryWriter, err := w.zw.Create(name)
	if err != nil {
		return fmt.Errorf("archive: creating entry %s: %w", name, err)
	}

	if _, err := io.Copy(entryWriter, r); err != nil {
		return fmt.Errorf("archive: writing entry %s: %w", name, err)
	}

	return nil
}

// Finish closes the archive's central directory, then atomically publishes
// the built file at the writer's destination path via
// github.com/natefinch/atomic, and removes the temporary build file.
func (w *Writer) Finish() error {
	if w.done {
		return errors.New("archive: writer already finished")
	}

	w.done = true

	if err := w.zw.Close(); err != nil {
		_ = w.tmpFile.Close()
		return fmt.Errorf("archive: closing zip writer: %w", err)
	}

	if err := w.tmpFile.Sync(); err != nil {
		_ = w.tmpFile.Close()
		return fmt.Errorf("archive: syncing build file: %w", err)
	}

	if _, err := w.tmpFile.Seek(0, io.SeekStart); err != nil {
		_ = w.tmpFile.Close()
		return fmt.Errorf("archive: rewinding build file: %w", err)
	}

	publishErr := katomic.WriteFile(w.path, w.tmpFile)

	closeErr := w.tmpFile.Close()
	_ = w.fsys.Remove(w.tmpPath)

	if publishErr != nil {
		return fmt.Errorf("archive: publishing %s: %w", w.path, publishErr)
	}

	if closeErr != nil {
		return fmt.Errorf("archive: closing build file: %w", closeErr)
	}

	return nil
}

// Abort discards the in-progress build file without publishing it.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}

	w.done = true

	closeErr := w.tmpFile.Close()
	_ = w.fsys.Remove(w.tmpPath)

	return closeErr
}

// Reader provides random-access reads of named entries from a sealed
// archive (spec.md §3 "Reading" state, §4.1 "Read is random-access by
// name").
//
// Safe for concurrent use by multiple readers.
type Reader struct {
	mu     sync.Mutex
	file   fs.File
	zr     *zip.Reader
	byName map[string]*zip.File
}

// Open opens a sealed archive for reading. Returns [ErrInvalidArchive] if
// the file cannot be parsed as a zip container.
func Open(fsys fs.FS, path string) (*Reader, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("archive: stat %s: %w", path, err)
	}

	zr, err := zip.NewReader(&readerAtAdapter{f: f}, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, path, err)
	}

	byName := make(map[string]*zip.File, len(zr.File))
	for _, zf := range zr.File {
		byName[zf.Name] = zf
	}

	return &Reader{file: f, zr: zr, byName: byName}, nil
}

// HasEntry reports whether name exists in the archive.
func (r *Reader) HasEntry(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byName[name]

	return ok
}

// GetEntry returns a lazily-read stream for the named entry. Callers must
// Close the returned ReadCloser.
func (r *Reader) GetEntry(name string) (io.ReadCloser, error) {
	r.mu.Lock()
	zf, ok := r.byName[name]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("archive: entry %s: %w", name, os.ErrNotExist)
	}

	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: opening entry %s: %w", name, err)
	}

	return rc, nil
}

// GetEntryBytes reads the named entry fully into memory. Prefer
// [Reader.GetEntry] for large blobs.
func (r *Reader) GetEntryBytes(name string) ([]byte, error) {
	rc, err := r.GetEntry(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: reading entry %s: %w", name, err)
	}

	return data, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}

	err := r.file.Close()
	r.file = nil

	return err
}

// readerAtAdapter provides io.ReaderAt over a fs.File (io.ReadWriteCloser +
// io.Seeker), serializing Seek+Read pairs under a mutex. zip.NewReader
// requires io.ReaderAt for random access into the central directory and
// individual entries.
type readerAtAdapter struct {
	mu sync.Mutex
	f  fs.File
}

func (a *readerAtAdapter) ReadAt(p []byte, off int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	return io.ReadFull(a.f, p)
}
