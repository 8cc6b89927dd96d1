// Package wireformat decodes the over-the-wire update record and its raw
// XML metadata blob into the structured Record spec.md §3 describes, using
// XPath queries (github.com/antchfx/xmlquery) over the parsed XML tree.
//
// The raw XML remains the source of truth (spec.md §3: "the raw XML is the
// source of truth; secondary indexes are derivable") — Record is a derived,
// throwaway view used to populate the store's secondary indexes at ingest
// time. It is never persisted on its own; only the original bytes are
// written to the archive (internal/xmlentry).
package wireformat

import (
	"github.com/google/uuid"

	"github.com/mswsus/cms/internal/identity"
)

// Prerequisite is the tagged sum spec.md §3 and §9 describe: either a single
// required GUID, or a disjunction ("at least one of") a list of GUIDs,
// optionally marked as a category group.
//
// Represented as a discriminated union rather than an interface hierarchy,
// per spec.md §9 ("Tagged sum for prerequisites... not via subtype
// polymorphism").
type Prerequisite struct {
	// Simple is true for a Prerequisite{Simple: true}; GUIDs holds exactly
	// one element in that case.
	Simple bool

	// GUIDs holds the single required GUID (Simple) or the disjunction set
	// (AtLeastOne).
	GUIDs []uuid.UUID

	// IsCategory marks an AtLeastOne prerequisite as a category group
	// (spec.md §4.4: "Simple ⇒ one-element list; AtLeastOne ⇒ multi-element
	// list with a sentinel all-zero GUID appended when isCategory is true").
	IsCategory bool
}

// NewSimplePrerequisite builds a Simple(GUID) prerequisite.
func NewSimplePrerequisite(g uuid.UUID) Prerequisite {
	return Prerequisite{Simple: true, GUIDs: []uuid.UUID{g}}
}

// NewAtLeastOnePrerequisite builds an AtLeastOne(list, isCategory) prerequisite.
func NewAtLeastOnePrerequisite(guids []uuid.UUID, isCategory bool) Prerequisite {
	return Prerequisite{Simple: false, GUIDs: guids, IsCategory: isCategory}
}

// FeatureScore is an OS-specific numeric ranking for a driver; lower is
// better (spec.md GLOSSARY).
type FeatureScore struct {
	OS    string
	Score int32
}

// Version is a driver's date + 4-part numeric version.
type Version struct {
	Date  string // YYYY-MM-DD, compared lexically (and so chronologically)
	Major int32
	Minor int32
	Build int32
	Patch int32
}

// Less orders versions by date first, then by the 4-part number
// (major, minor, build, patch), all ascending.
func (v Version) Less(other Version) bool {
	if v.Date != other.Date {
		return v.Date < other.Date
	}

	if v.Major != other.Major {
		return v.Major < other.Major
	}

	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}

	if v.Build != other.Build {
		return v.Build < other.Build
	}

	return v.Patch < other.Patch
}

// DriverMetadataItem is one entry in a driver record's metadata vector
// (spec.md §3 "Driver metadata").
type DriverMetadataItem struct {
	HardwareID                  string
	Version                     Version
	Class                       string
	FeatureScores                []FeatureScore
	TargetComputerHardwareIDs   []uuid.UUID
	DistributionComputerHardwareIDs []uuid.UUID
}

// FileRecord describes one file entry referenced by an update, keyed by
// content hash in the Files secondary index (spec.md §4.4).
type FileRecord struct {
	Hash     string // hex-encoded content digest, the Files index key
	URL      string
	FileName string
	Size     int64
}

// Record is the logical unit produced by parsing one update's raw XML blob
// (spec.md §3 "Record"). It is a throwaway view: the store consumes it once
// at ingest to populate secondary indexes and then discards it.
type Record struct {
	Identity identity.Identity
	Kind     identity.Kind

	Title     string
	KBArticle string // only meaningful for SoftwareUpdate; empty otherwise

	Prerequisites []Prerequisite

	BundledChildren []identity.Identity

	Files []FileRecord

	SupersededGUIDs []uuid.UUID

	DriverMetadata []DriverMetadataItem // nil for non-driver records

	XML []byte // the raw blob, unmodified, as stored in the archive
}
