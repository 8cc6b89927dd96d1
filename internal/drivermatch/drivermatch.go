// Package drivermatch implements the driver matching algorithm (spec.md
// C8, §4.8): given an ordered list of hardware IDs (specific to generic)
// and the requesting computer's hardware IDs, find the best applicable
// driver update.
package drivermatch

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/internal/secindex"
	"github.com/mswsus/cms/internal/wireformat"
)

// Applicable reports whether item's driver record is usable given whatever
// prerequisites are already installed on the target (spec.md §4.8 step 3:
// "applicability is an external predicate supplied by the record").
type Applicable func(secindex.MetadataID, wireformat.DriverMetadataItem) bool

// Result is the outcome of a successful match.
type Result struct {
	Update                identity.Index
	MetadataID             secindex.MetadataID
	Item                   wireformat.DriverMetadataItem
	MatchedHardwareID      string
	MatchedComputerHWID    uuid.UUID
	HasComputerHWID        bool
	MatchedFeatureScore    int32
	HasFeatureScore        bool
}

// Match implements spec.md §4.8 verbatim:
//  1. For each hardwareID in order, collect candidates from HardwareIdMap
//     (which already unions the baseline chain, see DriversIndex.ByHardwareID).
//  2. Sort candidates ascending by MetadataID for a deterministic tie-break.
//  3. Drop candidates applicable rejects.
//  4. Computer-hardware-ID match: for each computerHardwareID in input
//     order, keep candidates whose computer-hardware-ID set
//     (secindex.ComputerHardwareIDs: target ∩ distribution when both are
//     present, otherwise the non-empty one) contains it. Among the first
//     non-empty such group,
//     prefer the lowest feature score if any candidate has one (lower is
//     better, spec.md Glossary); otherwise the highest version.
//  5. If step 4 finds nothing, fall back to a simple hardware-ID match:
//     among candidates with no computer-hardware-ID at all, pick the
//     highest version.
//  6. Stop at the first hardwareID that produces a result.
func Match(drivers *secindex.DriversIndex, hardwareIDs []string, computerHardwareIDs []uuid.UUID, applicable Applicable) (Result, bool, error) {
	for _, hwid := range hardwareIDs {
		candidates, err := drivers.ByHardwareID(hwid)
		if err != nil {
			return Result{}, false, err
		}

		sort.Slice(candidates, func(i, j int) bool {
			return lessMetadataID(candidates[i], candidates[j])
		})

		items := make([]candidate, 0, len(candidates))

		for _, id := range candidates {
			item, ok, err := drivers.Metadata(id)
			if err != nil {
				return Result{}, false, err
			}

			if !ok {
				continue
			}

			if applicable != nil && !applicable(id, item) {
				continue
			}

			items = append(items, candidate{id: id, item: item})
		}

		if result, ok := matchOne(drivers, hwid, items, computerHardwareIDs); ok {
			return result, true, nil
		}
	}

	return Result{}, false, nil
}

type candidate struct {
	id   secindex.MetadataID
	item wireformat.DriverMetadataItem
}

func matchOne(drivers *secindex.DriversIndex, hwid string, items []candidate, computerHardwareIDs []uuid.UUID) (Result, bool) {
	for _, chwid := range computerHardwareIDs {
		var group []candidate

		for _, c := range items {
			if containsGUID(secindex.ComputerHardwareIDs(c.item), chwid) {
				group = append(group, c)
			}
		}

		if len(group) == 0 {
			continue
		}

		winner := pickByScoreOrVersion(group)

		return toResult(drivers, hwid, winner, chwid, true), true
	}

	var withoutComputerHWID []candidate

	for _, c := range items {
		if len(secindex.ComputerHardwareIDs(c.item)) == 0 {
			withoutComputerHWID = append(withoutComputerHWID, c)
		}
	}

	if len(withoutComputerHWID) == 0 {
		return Result{}, false
	}

	winner := pickByVersion(withoutComputerHWID)

	return toResult(drivers, hwid, winner, uuid.UUID{}, false), true
}

// pickByScoreOrVersion picks the lowest feature score if any candidate in
// group has one (spec.md Glossary: "lower is better"), ties broken by
// ascending MetadataID order (group is already sorted); otherwise falls
// back to the highest version.
func pickByScoreOrVersion(group []candidate) candidate {
	best, bestScore, haveScore := group[0], int32(0), false

	for _, c := range group {
		min, ok := minFeatureScore(c.item)
		if !ok {
			continue
		}

		if !haveScore || min < bestScore {
			best, bestScore, haveScore = c, min, true
		}
	}

	if haveScore {
		return best
	}

	return pickByVersion(group)
}

func pickByVersion(group []candidate) candidate {
	best := group[0]

	for _, c := range group[1:] {
		if best.item.Version.Less(c.item.Version) {
			best = c
		}
	}

	return best
}

func minFeatureScore(item wireformat.DriverMetadataItem) (int32, bool) {
	if len(item.FeatureScores) == 0 {
		return 0, false
	}

	min := item.FeatureScores[0].Score

	for _, fs := range item.FeatureScores[1:] {
		if fs.Score < min {
			min = fs.Score
		}
	}

	return min, true
}

func toResult(drivers *secindex.DriversIndex, hwid string, c candidate, chwid uuid.UUID, hasCHWID bool) Result {
	score, hasScore := minFeatureScore(c.item)

	return Result{
		Update:              drivers.DriverOf(c.id),
		MetadataID:          c.id,
		Item:                c.item,
		MatchedHardwareID:   hwid,
		MatchedComputerHWID: chwid,
		HasComputerHWID:     hasCHWID,
		MatchedFeatureScore: score,
		HasFeatureScore:     hasScore,
	}
}

func containsGUID(haystack []uuid.UUID, needle uuid.UUID) bool {
	for _, g := range haystack {
		if g == needle {
			return true
		}
	}

	return false
}

func lessMetadataID(a, b secindex.MetadataID) bool {
	if a.Update != b.Update {
		return a.Update < b.Update
	}

	return a.Seq < b.Seq
}
