package lsm

import (
	"context"
	"sync"

	"github.com/enclavekernel/libos/blockdev"
	"github.com/enclavekernel/libos/klog"
	"github.com/enclavekernel/libos/pagecache"
	"github.com/enclavekernel/libos/waiter"
)

// EngineConfig bundles an Engine's fixed parameters.
type EngineConfig struct {
	Device          blockdev.Device
	Cache           *pagecache.Cache[HBA]
	MemTableCap     int
	CompactionStart uint64 // first HBA available for newly built BITs
	NumSegments     int
}

// Engine is the LSM storage engine tying MemTable/immutable-MemTable swap,
// minor compaction, BITC and DST together, per spec.md §4.6's write and
// read paths. Minor compaction runs synchronously on the goroutine whose
// Insert filled the MemTable; there is no background worker. Other
// goroutines wait for it through a waiter.Queue (WaitCompaction) rather
// than a condition variable.
type Engine struct {
	device blockdev.Device
	cache  *pagecache.Cache[HBA]

	mu    sync.Mutex
	mem   *MemTable
	immut *MemTable // non-nil while a minor compaction is pending/running

	bitc *BITC
	dst  *DST

	nextHBA      uint64
	compactQueue *waiter.Queue
}

// NewEngine creates an Engine with an empty MemTable, BITC and DST.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		device:       cfg.Device,
		cache:        cfg.Cache,
		mem:          NewMemTable(cfg.MemTableCap),
		bitc:         NewBITC(),
		dst:          NewDST(cfg.NumSegments),
		nextHBA:      cfg.CompactionStart,
		compactQueue: waiter.NewQueue(),
	}
}

// Insert writes lba -> value into the active MemTable. Once it reaches
// capacity and no other compaction is pending, Insert swaps it to
// immutable and runs the minor compaction itself before returning. While
// another compaction is pending, the active MemTable keeps growing past
// capacity.
func (e *Engine) Insert(ctx context.Context, lba, value uint64) error {
	e.mu.Lock()
	e.mem.Insert(lba, value)
	full := e.mem.Full()
	var toCompact *MemTable
	if full && e.immut == nil {
		toCompact = e.mem
		e.immut = e.mem
		e.mem = NewMemTable(toCompact.capacity)
	}
	e.mu.Unlock()

	if toCompact != nil {
		if err := e.minorCompact(ctx, toCompact); err != nil {
			return err
		}
	}
	return nil
}

// minorCompact builds a fresh L0 BIT from table's records, installs it in
// BITC, marks the segment holding the new BIT valid in DST, and clears the
// immutable MemTable so Insert can swap in a new one. No block is marked
// invalid in DST here.
func (e *Engine) minorCompact(ctx context.Context, table *MemTable) error {
	records := table.Records()
	if len(records) == 0 {
		e.finishCompaction()
		return nil
	}

	e.mu.Lock()
	startHBA := e.nextHBA
	e.mu.Unlock()

	version := e.bitc.AssignVersion()
	bit, err := BuildBIT(ctx, e.device, startHBA, version, 0, records)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.nextHBA = startHBA + bit.Blocks()
	e.mu.Unlock()

	seg := startHBA / BlocksPerSegment
	e.dst.ValidateOrInsert(seg)

	prev := e.bitc.InsertL0(bit)
	_ = prev // folding prev into L1 is major compaction, not implemented here

	e.finishCompaction()
	return nil
}

func (e *Engine) finishCompaction() {
	e.mu.Lock()
	e.immut = nil
	e.mu.Unlock()
	e.compactQueue.WakeAll()
}

// WaitCompaction blocks until no minor compaction is pending or running,
// the cooperative equivalent of spec.md §4.6's wait_compaction.
func (e *Engine) WaitCompaction(ctx context.Context) error {
	_, err := waiter.Retry(ctx, e.compactQueue, func() (struct{}, bool) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return struct{}{}, e.immut == nil
	})
	return err
}

// Search implements spec.md §4.6's four-tier read path: active MemTable,
// immutable MemTable, L0 BIT, then the covering L1 BIT.
func (e *Engine) Search(ctx context.Context, lba uint64) (uint64, bool, error) {
	e.mu.Lock()
	if v, ok := e.mem.Search(lba); ok {
		e.mu.Unlock()
		return v, true, nil
	}
	if e.immut != nil {
		if v, ok := e.immut.Search(lba); ok {
			e.mu.Unlock()
			return v, true, nil
		}
	}
	candidates := e.bitc.CandidatesForLBA(lba)
	e.mu.Unlock()

	for _, bit := range candidates {
		rec, ok, err := bit.Search(ctx, e.device, e.cache, lba)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return rec.Value, true, nil
		}
	}
	return 0, false, nil
}

// SearchRange merges matches from every tier across [start,end), most
// recent first, stopping early if ctx is done.
func (e *Engine) SearchRange(ctx context.Context, start, end uint64) ([]Record, error) {
	seen := make(map[uint64]bool)
	var out []Record

	add := func(records []Record) {
		for _, r := range records {
			if !seen[r.LBA] {
				seen[r.LBA] = true
				out = append(out, r)
			}
		}
	}

	e.mu.Lock()
	add(e.mem.SearchRange(start, end))
	if e.immut != nil {
		add(e.immut.SearchRange(start, end))
	}
	candidates := e.bitc.CandidatesForRange(start, end)
	e.mu.Unlock()

	for _, bit := range candidates {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		records, err := bit.SearchRange(ctx, e.device, e.cache, start, end)
		if err != nil {
			return nil, err
		}
		add(records)
	}
	return out, nil
}

// Persist AEAD-seals and writes the BITC catalog through shadow, then
// checkpoints it. The DST is not persisted; it lives in memory only.
func (e *Engine) Persist(ctx context.Context, shadow *DiskShadow) error {
	e.mu.Lock()
	payload := e.bitc.Encode()
	e.mu.Unlock()

	if err := shadow.Write(ctx, payload); err != nil {
		klog.For(klog.LSM).Warn().Str("stage", "persist").Log("lsm: catalog persist failed")
		return err
	}
	shadow.Checkpoint()
	return nil
}

// Restore loads the catalog back from shadow and installs it, for engine
// startup after a restart.
func (e *Engine) Restore(ctx context.Context, shadow *DiskShadow) error {
	payload, err := shadow.Load(ctx)
	if err != nil {
		return err
	}
	bitc, err := DecodeBITC(payload)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.bitc = bitc
	e.mu.Unlock()
	return nil
}
