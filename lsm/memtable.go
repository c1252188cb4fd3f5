package lsm

import "sort"

// MemTable is an in-memory sorted set of Records, kept as a plain slice
// (like /vm's FreeSpaceManager and /pagecache's dirty set) rather than a
// balanced tree: the pack carries no such structure, and a MemTable's
// capacity is bounded by MaxRecordsPerBit so insertion cost stays
// acceptable.
type MemTable struct {
	records  []Record
	capacity int
}

func NewMemTable(capacity int) *MemTable {
	return &MemTable{capacity: capacity}
}

// Insert adds or replaces the mapping for lba, keeping records sorted by
// LBA.
func (m *MemTable) Insert(lba, value uint64) {
	i := sort.Search(len(m.records), func(i int) bool { return m.records[i].LBA >= lba })
	if i < len(m.records) && m.records[i].LBA == lba {
		m.records[i].Value = value
		return
	}
	m.records = append(m.records, Record{})
	copy(m.records[i+1:], m.records[i:])
	m.records[i] = Record{LBA: lba, Value: value}
}

// Search returns the value mapped to lba, if present.
func (m *MemTable) Search(lba uint64) (uint64, bool) {
	i := sort.Search(len(m.records), func(i int) bool { return m.records[i].LBA >= lba })
	if i < len(m.records) && m.records[i].LBA == lba {
		return m.records[i].Value, true
	}
	return 0, false
}

// SearchRange returns every record with LBA in [start, end).
func (m *MemTable) SearchRange(start, end uint64) []Record {
	lo := sort.Search(len(m.records), func(i int) bool { return m.records[i].LBA >= start })
	hi := sort.Search(len(m.records), func(i int) bool { return m.records[i].LBA >= end })
	out := make([]Record, hi-lo)
	copy(out, m.records[lo:hi])
	return out
}

// Len reports the number of distinct LBAs currently held.
func (m *MemTable) Len() int { return len(m.records) }

// Full reports whether the MemTable has reached capacity, the trigger for
// the immutable-MemTable swap in spec.md §4.6's write path.
func (m *MemTable) Full() bool { return len(m.records) >= m.capacity }

// Records returns the full sorted record set, used when handing the
// memtable off for minor compaction.
func (m *MemTable) Records() []Record {
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Reset empties the memtable so it can be reused once its compaction has
// drained.
func (m *MemTable) Reset() { m.records = m.records[:0] }
