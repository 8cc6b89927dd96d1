package cms

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// parseArchiveFilename splits path's base name into its chain prefix and
// DeltaIndex, per the delta filename scheme (spec.md §6): "root.zip",
// "root-1.zip", "root-2.zip", ... A name with no numeric suffix (or whose
// trailing "-N" segment does not parse as a non-negative integer) is the
// chain root, DeltaIndex 0.
func parseArchiveFilename(path string) (prefix string, deltaIndex uint64) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, ".zip")

	dash := strings.LastIndex(stem, "-")
	if dash < 0 {
		return stem, 0
	}

	n, err := strconv.ParseUint(stem[dash+1:], 10, 64)
	if err != nil {
		return stem, 0
	}

	return stem[:dash], n
}

// baselinePathFor returns path's baseline file path and true, or ("",
// false) if path names a chain root with no baseline (spec.md §4.6, §6:
// "decrement the suffix; 1 has no suffix").
func baselinePathFor(path string) (string, bool) {
	dir := filepath.Dir(path)
	prefix, deltaIndex := parseArchiveFilename(path)

	switch {
	case deltaIndex == 0:
		return "", false
	case deltaIndex == 1:
		return filepath.Join(dir, prefix+".zip"), true
	default:
		return filepath.Join(dir, fmt.Sprintf("%s-%d.zip", prefix, deltaIndex-1)), true
	}
}

// nextDeltaFilename returns the filename a new delta built on top of
// baselinePath should use: baselinePath's DeltaIndex + 1 appended as a
// suffix (spec.md §4.6: "DeltaIndex = baseline.DeltaIndex + 1").
func nextDeltaFilename(baselinePath string) string {
	dir := filepath.Dir(baselinePath)
	prefix, deltaIndex := parseArchiveFilename(baselinePath)

	return filepath.Join(dir, fmt.Sprintf("%s-%d.zip", prefix, deltaIndex+1))
}
