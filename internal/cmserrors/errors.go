// Package cmserrors holds the sentinel error taxonomy spec.md §7 names, so
// every layer of the store (archive, xmlentry, secindex, drivermatch, graph,
// and the root cms package) reports failures the caller can distinguish
// with errors.Is, rather than by matching message strings.
package cmserrors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArchive reports a malformed or truncated index.json, or an
	// unknown archive version (spec.md §4.1, §7).
	ErrInvalidArchive = errors.New("cms: invalid archive")

	// ErrBaselineMismatch reports that a delta's BaselineChecksum does not
	// match its baseline's Checksum (spec.md §4.6, I4). A delta filename
	// whose parsed suffix does not match index.json's DeltaIndex is
	// reported as ErrCorruptChainName instead.
	ErrBaselineMismatch = errors.New("cms: baseline mismatch")

	// ErrCorruptChainName reports a delta filename whose parsed suffix
	// disagrees with its index.json DeltaIndex field (spec.md §6).
	ErrCorruptChainName = errors.New("cms: corrupt chain name")

	// ErrMissingBaseline reports that a delta's baseline file does not exist
	// on disk (spec.md §4.6, §7).
	ErrMissingBaseline = errors.New("cms: missing baseline")

	// ErrUnresolvedBundles reports a commit attempted while
	// PendingBundledUpdates is non-empty (spec.md I5, §7).
	ErrUnresolvedBundles = errors.New("cms: unresolved bundles")

	// ErrUnknownIdentity reports a read for an identity absent from the
	// whole delta chain (spec.md §7).
	ErrUnknownIdentity = errors.New("cms: unknown identity")

	// ErrUnknownIndex reports a read for an index absent from the whole
	// delta chain (spec.md §7).
	ErrUnknownIndex = errors.New("cms: unknown index")

	// ErrNotSuperseded reports a supersedence query for an update that is
	// not superseded (spec.md §7).
	ErrNotSuperseded = errors.New("cms: not superseded")

	// ErrNotBundle reports a bundle query for an update that is not a
	// bundle parent or child (spec.md §7).
	ErrNotBundle = errors.New("cms: not a bundle")

	// ErrNotDriver reports a driver-typed query against a non-driver record
	// (spec.md §7).
	ErrNotDriver = errors.New("cms: not a driver update")

	// ErrNotInWriteMode reports a sink operation attempted while the
	// archive is not in the Writing state (spec.md §3, §7).
	ErrNotInWriteMode = errors.New("cms: not in write mode")

	// ErrNotInReadMode reports a source operation attempted while the
	// archive is not in the Reading state (spec.md §3, §7).
	ErrNotInReadMode = errors.New("cms: not in read mode")

	// ErrClosed reports an operation attempted on a closed store.
	ErrClosed = errors.New("cms: store closed")

	// ErrNotImplemented reports a call into an operation the store
	// intentionally delegates to an out-of-scope collaborator (spec.md §1,
	// §4.9 export: "delegated to the out-of-scope export component").
	ErrNotImplemented = errors.New("cms: not implemented by this store")

	// ErrArchiveLocked reports that another process already holds the
	// write lock for this archive path (spec.md §5: Writing-state is
	// single-writer; cross-process exclusion is enforced via flock(2)).
	ErrArchiveLocked = errors.New("cms: archive locked by another process")

	// ErrIO reports that the underlying filesystem failed an operation the
	// store needed to complete (spec.md:192 IOError): a short read, a failed
	// write, fsync, or an archive that could not be opened or sealed at all.
	// Distinct from ErrInvalidArchive, which reports a successfully-read but
	// malformed container.
	ErrIO = errors.New("cms: I/O error")
)

// WrapIO wraps err as ErrIO, unless err is nil or already one of this
// package's sentinels (in which case it is returned unchanged so callers
// keep their specific classification).
func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		ErrInvalidArchive, ErrBaselineMismatch, ErrCorruptChainName, ErrMissingBaseline,
		ErrUnresolvedBundles, ErrUnknownIdentity, ErrUnknownIndex, ErrNotSuperseded,
		ErrNotBundle, ErrNotDriver, ErrNotInWriteMode, ErrNotInReadMode, ErrClosed,
		ErrNotImplemented, ErrArchiveLocked,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	return fmt.Errorf("cms: %s: %w: %v", op, ErrIO, err)
}
