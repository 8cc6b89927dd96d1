package identity

import "sort"

// Entry is one (Index, Identity) pair as persisted in index.json's
// IdentityAndIndexList (spec.md §6).
type Entry struct {
	Index    Index
	Identity Identity
}

// Table is the bijective map between Identity and Index for one archive.
//
// A delta archive's Table is seeded from its baseline's Table (by reference,
// not copy — spec.md §4.6: "copy the baseline's identity/index maps and
// kind map by reference") so lookups for baseline-owned indexes never need
// to recurse through Table itself; only entries added in this archive are
// ever written back out at serialization time (spec.md I7, §4.2).
type Table struct {
	baseline *Table

	byIdentity map[Identity]Index
	byIndex    map[Index]Identity

	// next is the next index this archive will allocate.
	next Index
}

// NewTable creates an empty root table (no baseline).
func NewTable() *Table {
	return &Table{
		byIdentity: make(map[Identity]Index),
		byIndex:    make(map[Index]Identity),
	}
}

// NewDeltaTable creates a table for a new delta archive layered on baseline.
// The baseline is referenced, not copied; BaselineIndexesEnd is
// baseline.Count()-1 and the new table allocates starting at
// BaselineIndexesEnd+1 (spec.md I2, §4.6).
func NewDeltaTable(baseline *Table) *Table {
	return &Table{
		baseline:   baseline,
		byIdentity: make(map[Identity]Index),
		byIndex:    make(map[Index]Identity),
		next:       baseline.next,
	}
}

// BaselineIndexesEnd is the highest index owned by the baseline, or -1 for a
// root table.
func (t *Table) BaselineIndexesEnd() Index {
	if t.baseline == nil {
		return -1
	}

	return t.baseline.next - 1
}

// Add assigns a fresh index to identity if it is not already known anywhere
// in the chain, returning the (possibly pre-existing) index and whether it
// was newly added. Duplicates are rejected silently (spec.md §4.2: "the
// record is already present").
func (t *Table) Add(id Identity) (idx Index, added bool) {
	if existing, ok := t.IndexOf(id); ok {
		return existing, false
	}

	idx = t.next
	t.next++
	t.byIdentity[id] = idx
	t.byIndex[idx] = id

	return idx, true
}

// IndexOf resolves an identity to its index, recursing into the baseline
// chain. Total over the chain (spec.md I1).
func (t *Table) IndexOf(id Identity) (Index, bool) {
	if idx, ok := t.byIdentity[id]; ok {
		return idx, true
	}

	if t.baseline != nil {
		return t.baseline.IndexOf(id)
	}

	return 0, false
}

// IdentityOf resolves an index to its identity, recursing into the baseline
// chain for indexes <= BaselineIndexesEnd. Total over the chain (spec.md I1).
func (t *Table) IdentityOf(idx Index) (Identity, bool) {
	if id, ok := t.byIndex[idx]; ok {
		return id, true
	}

	if t.baseline != nil && idx <= t.BaselineIndexesEnd() {
		return t.baseline.IdentityOf(idx)
	}

	return Identity{}, false
}

// Count is the number of indexes allocated across the whole chain
// (BaselineIndexesEnd+1 + entries added locally).
func (t *Table) Count() Index {
	return t.next
}

// OwnEntries returns this archive's own (index, identity) entries — those
// with index > BaselineIndexesEnd — sorted by index ascending. This is what
// gets serialized into a delta's IdentityAndIndexList (spec.md §4.2, I7) and
// is exactly the set the checksum is computed over (spec.md I6).
func (t *Table) OwnEntries() []Entry {
	entries := make([]Entry, 0, len(t.byIndex))
	for idx, id := range t.byIndex {
		entries = append(entries, Entry{Index: idx, Identity: id})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })

	return entries
}

// LoadEntries rebuilds the direction maps from a sorted entry list read from
// index.json. Used both for a root archive (the full list) and for a delta
// (only its own entries — the baseline supplies the rest via the baseline
// pointer, spec.md §4.2).
func (t *Table) LoadEntries(entries []Entry) {
	for _, e := range entries {
		t.byIdentity[e.Identity] = e.Index
		t.byIndex[e.Index] = e.Identity

		if e.Index >= t.next {
			t.next = e.Index + 1
		}
	}
}
