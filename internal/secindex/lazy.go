// Package secindex implements the secondary indexes (spec.md C4): titles,
// KB articles, prerequisites, bundles, files, supersedence,
// product/classification, and driver hardware/feature-score indexes.
//
// Every index shares the same contract (spec.md §4.4):
//   - Put during Writing.
//   - Get during Reading: miss + index <= BaselineIndexesEnd recurses into
//     the baseline; otherwise "not found".
//   - The on-disk blob is deserialized at most once, behind a one-shot
//     guard (spec.md §9 "Laziness with single-shot guards").
//   - Serialization strips keys <= BaselineIndexesEnd (spec.md I7).
package secindex

import (
	"fmt"
	"io"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/pkg/archive"
)

// Lazy deserializes a value of type T at most once, on first [Lazy.Get],
// behind a sync.Once guard — the single-shot initializer spec.md §9 and §5
// call for per index, rather than one coarse lock over the whole store.
type Lazy[T any] struct {
	once sync.Once
	err  error
	data T
	load func() (T, error)
}

// NewLazy wraps load so it runs at most once across all callers.
func NewLazy[T any](load func() (T, error)) *Lazy[T] {
	return &Lazy[T]{load: load}
}

// Get triggers load on the first call; concurrent callers that lose the
// race block until the winner finishes and then observe the same result
// (spec.md §5: "concurrent get callers that lose the race wait for the
// winner").
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.data, l.err = l.load()
	})

	return l.data, l.err
}

// loadJSON reads blob from reader and JSON-decodes it into a zero value of
// T. A missing blob (root archive with no entries of this kind yet written,
// or an index never touched before commit) decodes as the zero value, not
// an error: spec.md's secondary indexes are optional per archive.
func loadJSON[T any](reader *archive.Reader, blobName string) (T, error) {
	var zero T

	if reader == nil || !reader.HasEntry(blobName) {
		return zero, nil
	}

	rc, err := reader.GetEntry(blobName)
	if err != nil {
		return zero, fmt.Errorf("secindex: opening %s: %w", blobName, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return zero, fmt.Errorf("secindex: reading %s: %w", blobName, err)
	}

	if len(data) == 0 {
		return zero, nil
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("secindex: decoding %s: %w", blobName, err)
	}

	return out, nil
}

// resolve looks up idx in own; on miss, if idx <= baselineEnd it defers to
// baselineGet. This is the single recursion helper spec.md §9 calls for
// ("do not hand-code the recursion per index") — every index type's Get
// method is a thin wrapper around this.
func resolve[V any](own map[identity.Index]V, idx identity.Index, baselineEnd identity.Index, baselineGet func(identity.Index) (V, bool, error)) (V, bool, error) {
	if v, ok := own[idx]; ok {
		return v, true, nil
	}

	if idx <= baselineEnd && baselineGet != nil {
		return baselineGet(idx)
	}

	var zero V

	return zero, false, nil
}

// stripBaseline returns the subset of m whose keys exceed baselineEnd, for
// serialization (spec.md I7).
func stripBaseline[V any](m map[identity.Index]V, baselineEnd identity.Index) map[identity.Index]V {
	out := make(map[identity.Index]V, len(m))

	for k, v := range m {
		if k > baselineEnd {
			out[k] = v
		}
	}

	return out
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
