package secindex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/internal/wireformat"
	"github.com/mswsus/cms/pkg/archive"
)

// MetadataID identifies one wireformat.DriverMetadataItem within the flat
// driver metadata store: the driver update that carried it, plus its
// position in that update's DriverMetadata list (spec.md §4.4 "Driver
// indexes": "a driver update's metadata entries are stored flat, addressed
// by (update, position), not nested under the update record").
type MetadataID struct {
	Update identity.Index
	Seq    int32
}

// MarshalText renders a MetadataID as "<update>:<seq>" so it can serve as a
// JSON object key (encoding/json and goccy/go-json both require map keys to
// be strings or implement encoding.TextMarshaler).
func (id MetadataID) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d:%d", id.Update, id.Seq)), nil
}

// UnmarshalText parses the "<update>:<seq>" form written by MarshalText.
func (id *MetadataID) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("secindex: malformed MetadataID %q", text)
	}

	update, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return fmt.Errorf("secindex: malformed MetadataID %q: %w", text, err)
	}

	seq, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("secindex: malformed MetadataID %q: %w", text, err)
	}

	id.Update = identity.Index(update)
	id.Seq = int32(seq)

	return nil
}

// DriversIndex holds every driver-specific secondary index (spec.md §4.4,
// §4.8): the flat metadata store, the driver<->metadata maps, the
// hardware-ID and version lookups the driver matcher walks.
type DriversIndex struct {
	baselineEnd identity.Index
	baseline    *DriversIndex

	// Writing state.
	store       map[MetadataID]wireformat.DriverMetadataItem
	driverToIDs map[identity.Index][]MetadataID
	hardwareID  map[string][]MetadataID // lowercased HardwareID -> metadata

	storeLazy       *Lazy[map[MetadataID]wireformat.DriverMetadataItem]
	driverToIDsLazy *Lazy[map[identity.Index][]MetadataID]
	hardwareIDLazy  *Lazy[map[string][]MetadataID]
}

// NewDriversIndexForWriting creates an empty index for the Writing state.
func NewDriversIndexForWriting() *DriversIndex {
	return &DriversIndex{
		store:       make(map[MetadataID]wireformat.DriverMetadataItem),
		driverToIDs: make(map[identity.Index][]MetadataID),
		hardwareID:  make(map[string][]MetadataID),
	}
}

// NewDriversIndexForReading creates an index for the Reading state.
func NewDriversIndexForReading(reader *archive.Reader, storeBlob, driverToIDsBlob, hardwareIDBlob string, baselineEnd identity.Index, baseline *DriversIndex) *DriversIndex {
	idx := &DriversIndex{baselineEnd: baselineEnd, baseline: baseline}
	idx.storeLazy = NewLazy(func() (map[MetadataID]wireformat.DriverMetadataItem, error) {
		return loadJSON[map[MetadataID]wireformat.DriverMetadataItem](reader, storeBlob)
	})
	idx.driverToIDsLazy = NewLazy(func() (map[identity.Index][]MetadataID, error) {
		return loadJSON[map[identity.Index][]MetadataID](reader, driverToIDsBlob)
	})
	idx.hardwareIDLazy = NewLazy(func() (map[string][]MetadataID, error) {
		return loadJSON[map[string][]MetadataID](reader, hardwareIDBlob)
	})

	return idx
}

// PutDriverMetadata records update's driver metadata items. Writing state
// only. Hardware IDs are matched case-insensitively (spec.md §4.8), so the
// hardware-ID index key is lowercased here; items themselves retain their
// original casing.
func (idx *DriversIndex) PutDriverMetadata(update identity.Index, items []wireformat.DriverMetadataItem) {
	ids := make([]MetadataID, 0, len(items))

	for seq, item := range items {
		id := MetadataID{Update: update, Seq: int32(seq)}
		idx.store[id] = item
		ids = append(ids, id)

		key := strings.ToLower(item.HardwareID)
		idx.hardwareID[key] = append(idx.hardwareID[key], id)
	}

	idx.driverToIDs[update] = ids
}

// Metadata resolves one item by MetadataID, recursing into the baseline.
func (idx *DriversIndex) Metadata(id MetadataID) (wireformat.DriverMetadataItem, bool, error) {
	m := idx.store
	if idx.storeLazy != nil {
		loaded, err := idx.storeLazy.Get()
		if err != nil {
			return wireformat.DriverMetadataItem{}, false, err
		}

		m = loaded
	}

	if item, ok := m[id]; ok {
		return item, true, nil
	}

	if idx.baseline != nil {
		return idx.baseline.Metadata(id)
	}

	return wireformat.DriverMetadataItem{}, false, nil
}

// MetadataOf resolves update's metadata IDs (DriverToMetadataMap),
// recursing into the baseline on miss.
func (idx *DriversIndex) MetadataOf(update identity.Index) ([]MetadataID, bool, error) {
	m, err := idx.driverToIDsLazy.Get()
	if err != nil {
		return nil, false, err
	}

	return resolve(m, update, idx.baselineEnd, idx.baselineMetadataOf)
}

func (idx *DriversIndex) baselineMetadataOf(update identity.Index) ([]MetadataID, bool, error) {
	if idx.baseline == nil {
		return nil, false, nil
	}

	return idx.baseline.MetadataOf(update)
}

// DriverOf is MetadataToDriverMap: the inverse of MetadataOf, materialized
// from a MetadataID's own Update field rather than stored as a separate
// blob (spec.md §4.4: "the reverse map is free — a MetadataID already
// carries its owning update").
func (idx *DriversIndex) DriverOf(id MetadataID) identity.Index {
	return id.Update
}

// ByHardwareID resolves the metadata IDs matching a hardware ID, matched
// case-insensitively, recursing into the baseline.
func (idx *DriversIndex) ByHardwareID(hardwareID string) ([]MetadataID, error) {
	m := idx.hardwareID
	if idx.hardwareIDLazy != nil {
		loaded, err := idx.hardwareIDLazy.Get()
		if err != nil {
			return nil, err
		}

		m = loaded
	}

	key := strings.ToLower(hardwareID)
	out := append([]MetadataID(nil), m[key]...)

	if idx.baseline != nil {
		baselineIDs, err := idx.baseline.ByHardwareID(hardwareID)
		if err != nil {
			return nil, err
		}

		out = append(out, baselineIDs...)
	}

	return out, nil
}

// ComputerHardwareIDs returns item's MetadataToComputerHardwareIdMap entry:
// the intersection of its target and distribution computer-hardware-ID
// lists when both are present, otherwise whichever of the two is non-empty
// (spec.md:95). Computed on read from the item itself rather than stored,
// since it is a pure function of fields already on DriverMetadataItem.
func ComputerHardwareIDs(item wireformat.DriverMetadataItem) []uuid.UUID {
	target := item.TargetComputerHardwareIDs
	distribution := item.DistributionComputerHardwareIDs

	if len(target) == 0 {
		return distribution
	}

	if len(distribution) == 0 {
		return target
	}

	distributionSet := make(map[uuid.UUID]struct{}, len(distribution))
	for _, g := range distribution {
		distributionSet[g] = struct{}{}
	}

	out := make([]uuid.UUID, 0, len(target))

	for _, g := range target {
		if _, ok := distributionSet[g]; ok {
			out = append(out, g)
		}
	}

	return out
}

// BestVersion implements the DriverVersionIndex query: among candidates
// (typically ByHardwareID's result), the MetadataID whose item carries the
// highest wireformat.Version (spec.md §4.8 step 5 "rank candidates by
// version, highest wins").
func (idx *DriversIndex) BestVersion(candidates []MetadataID) (MetadataID, wireformat.DriverMetadataItem, bool, error) {
	var (
		best      MetadataID
		bestItem  wireformat.DriverMetadataItem
		haveBest  bool
	)

	for _, id := range candidates {
		item, ok, err := idx.Metadata(id)
		if err != nil {
			return MetadataID{}, wireformat.DriverMetadataItem{}, false, err
		}

		if !ok {
			continue
		}

		if !haveBest || bestItem.Version.Less(item.Version) {
			best, bestItem, haveBest = id, item, true
		}
	}

	return best, bestItem, haveBest, nil
}

// FeatureScore implements the DriverFeatureScoreIndex query: item's score
// for os, if any (spec.md §4.8 step 6 "feature score breaks ties between
// equally-applicable drivers for the same OS").
func FeatureScore(item wireformat.DriverMetadataItem, os string) (int32, bool) {
	for _, fs := range item.FeatureScores {
		if fs.OS == os {
			return fs.Score, true
		}
	}

	return 0, false
}

// SerializeStore returns this archive's own MetadataID->item entries as
// JSON. Keyed by MetadataID (which embeds an update index), so ownership is
// determined by the embedded index exceeding baselineEnd rather than by the
// map key itself.
func (idx *DriversIndex) SerializeStore() ([]byte, error) {
	out := make(map[MetadataID]wireformat.DriverMetadataItem, len(idx.store))

	for id, item := range idx.store {
		if id.Update > idx.baselineEnd {
			out[id] = item
		}
	}

	return marshalJSON(out)
}

// SerializeDriverToIDs returns this archive's own update->metadata-IDs
// entries as JSON (spec.md I7).
func (idx *DriversIndex) SerializeDriverToIDs() ([]byte, error) {
	return marshalJSON(stripBaseline(idx.driverToIDs, idx.baselineEnd))
}

// SerializeHardwareID returns this archive's own hardware-ID entries as
// JSON, filtered to MetadataIDs this archive itself owns.
func (idx *DriversIndex) SerializeHardwareID() ([]byte, error) {
	out := make(map[string][]MetadataID, len(idx.hardwareID))

	for key, ids := range idx.hardwareID {
		owned := make([]MetadataID, 0, len(ids))

		for _, id := range ids {
			if id.Update > idx.baselineEnd {
				owned = append(owned, id)
			}
		}

		if len(owned) > 0 {
			out[key] = owned
		}
	}

	return marshalJSON(out)
}
