package cms

import (
	"strconv"
	"strings"

	"github.com/mswsus/cms/internal/cmserrors"
)

// Public sentinel errors (spec.md §7). Re-exported from internal/cmserrors
// so every layer of the store reports the same underlying error value and
// callers can use errors.Is(err, cms.ErrXxx) regardless of which layer
// raised it.
var (
	ErrInvalidArchive    = cmserrors.ErrInvalidArchive
	ErrBaselineMismatch  = cmserrors.ErrBaselineMismatch
	ErrCorruptChainName  = cmserrors.ErrCorruptChainName
	ErrMissingBaseline   = cmserrors.ErrMissingBaseline
	ErrUnresolvedBundles = cmserrors.ErrUnresolvedBundles
	ErrUnknownIdentity   = cmserrors.ErrUnknownIdentity
	ErrUnknownIndex      = cmserrors.ErrUnknownIndex
	ErrNotSuperseded     = cmserrors.ErrNotSuperseded
	ErrNotBundle         = cmserrors.ErrNotBundle
	ErrNotDriver         = cmserrors.ErrNotDriver
	ErrNotInWriteMode    = cmserrors.ErrNotInWriteMode
	ErrNotInReadMode     = cmserrors.ErrNotInReadMode
	ErrClosed            = cmserrors.ErrClosed
	ErrNotImplemented    = cmserrors.ErrNotImplemented
	ErrArchiveLocked     = cmserrors.ErrArchiveLocked
	ErrIO                = cmserrors.ErrIO
)

// Error is the uniform error type returned by the public Store, Sink, and
// Source APIs: the underlying sentinel (one of the Err* values above, via
// [Error.Unwrap]) plus the archive and, where applicable, the index or
// identity it concerns.
//
//	var cErr *cms.Error
//	if errors.As(err, &cErr) {
//	    log.Printf("failed for archive %s index %d", cErr.Archive, cErr.Index)
//	}
type Error struct {
	// Archive is the archive file path the operation concerned.
	Archive string

	// Index is the package index the operation concerned, or -1 if none.
	Index int32

	// Identity is a human-readable identity (GUID or GUID:revision), or
	// empty if none.
	Identity string

	// Err is the underlying sentinel cause.
	Err error
}

// Error formats as "<cause> (archive=... index=... identity=...)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	suffix := e.suffix()
	if suffix == "" {
		return cause
	}

	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying sentinel for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) suffix() string {
	var parts []string

	if e.Archive != "" {
		parts = append(parts, "archive="+e.Archive)
	}

	if e.Index >= 0 {
		parts = append(parts, "index="+strconv.Itoa(int(e.Index)))
	}

	if e.Identity != "" {
		parts = append(parts, "identity="+e.Identity)
	}

	if len(parts) == 0 {
		return ""
	}

	return "(" + strings.Join(parts, " ") + ")"
}
