package pagecache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/enclavekernel/libos/poll"
	"golang.org/x/exp/slices"
)

// Key is a cache key convertible to a uint64, the ordering pop_dirty_to_flush
// and group_consecutive_pages both need (spec.md's K: Into<u64>).
type Key interface {
	comparable
	Uint64() uint64
}

type pageEntry[K Key] struct {
	key     K
	page    *Page
	refs    atomic.Int32
	lruElem *list.Element
}

// Cache maps K to a Page, LRU-ordered, with a separate ordered set of
// dirty keys. Grounded on eventloop/registry.go's map+container/list
// combination (O(1) lookup, O(1) move-to-front).
type Cache[K Key] struct {
	mu      sync.Mutex
	alloc   Alloc
	entries map[K]*pageEntry[K]
	lru     list.List // front = most recently used
	dirty   []K       // sorted ascending by Uint64()

	pollee    *poll.Pollee // raises Events.Out when eviction frees space
	dirtyHook func(n int)  // set by Flusher.attach; called after every release
}

// New returns an empty Cache backed by alloc.
func New[K Key](alloc Alloc) *Cache[K] {
	c := &Cache[K]{
		alloc:   alloc,
		entries: make(map[K]*pageEntry[K]),
		pollee:  poll.NewPollee(0),
	}
	c.lru.Init()
	return c
}

// Pollee returns the readiness object that fires Events.Out when eviction
// frees space.
func (c *Cache[K]) Pollee() *poll.Pollee {
	return c.pollee
}

// Acquire returns the existing handle on a cache hit, or installs a fresh
// Uninit page on a miss if the allocator has room (evicting one page
// first if necessary). Reports false only if the allocator is exhausted
// and nothing is evictable.
func (c *Cache[K]) Acquire(key K) (*Handle[K], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.lru.MoveToFront(e.lruElem)
		e.refs.Add(1)
		return &Handle[K]{entry: e, cache: c}, true
	}

	buf, ok := c.alloc.AllocPage()
	if !ok {
		if c.evictLocked(1) == 0 {
			return nil, false
		}
		buf, ok = c.alloc.AllocPage()
		if !ok {
			return nil, false
		}
	}

	page := &Page{buf: buf}
	page.state.Store(Uninit)
	e := &pageEntry[K]{key: key, page: page}
	e.refs.Store(1)
	e.lruElem = c.lru.PushFront(e)
	c.entries[key] = e
	return &Handle[K]{entry: e, cache: c}, true
}

// release implements the release(handle) contract: drop the caller's
// reference, then resync dirty-set membership with the page's current
// state. Called by Handle.Release.
func (c *Cache[K]) release(h *Handle[K]) {
	c.mu.Lock()
	e := h.entry
	e.refs.Add(-1)

	if e.page.state.Load() == Dirty {
		c.insertDirtyLocked(e.key)
	} else {
		c.removeDirtyLocked(e.key)
	}
	n := len(c.dirty)
	hook := c.dirtyHook
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
}

func (c *Cache[K]) insertDirtyLocked(key K) {
	i, found := slices.BinarySearchFunc(c.dirty, key, func(a, b K) int {
		switch {
		case a.Uint64() < b.Uint64():
			return -1
		case a.Uint64() > b.Uint64():
			return 1
		default:
			return 0
		}
	})
	if found {
		return
	}
	c.dirty = slices.Insert(c.dirty, i, key)
}

func (c *Cache[K]) removeDirtyLocked(key K) {
	i, found := slices.BinarySearchFunc(c.dirty, key, func(a, b K) int {
		switch {
		case a.Uint64() < b.Uint64():
			return -1
		case a.Uint64() > b.Uint64():
			return 1
		default:
			return 0
		}
	})
	if !found {
		return
	}
	c.dirty = slices.Delete(c.dirty, i, i+1)
}

// NumDirtyPages is the count the Flusher watches against LOW/HIGH.
func (c *Cache[K]) NumDirtyPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// PopDirtyToFlush atomically moves up to max lowest-keyed dirty pages into
// state Flushing and returns handles to them for batch I/O. The caller
// (normally a Flusher) must call Handle.Release after transitioning each
// page back to UpToDate (success) or Dirty (failure).
func (c *Cache[K]) PopDirtyToFlush(max int) []*Handle[K] {
	c.mu.Lock()
	defer c.mu.Unlock()

	take := max
	if take > len(c.dirty) {
		take = len(c.dirty)
	}
	if take == 0 {
		return nil
	}

	keys := append([]K(nil), c.dirty[:take]...)
	c.dirty = c.dirty[take:]

	handles := make([]*Handle[K], 0, take)
	for _, k := range keys {
		e := c.entries[k]
		if e == nil {
			continue
		}
		e.page.state.Store(Flushing)
		e.refs.Add(1)
		handles = append(handles, &Handle[K]{entry: e, cache: c})
	}
	return handles
}

// GroupConsecutivePages splits a sorted key slice (as returned by
// PopDirtyToFlush, via Handle.Key) into runs whose keys are contiguous
// (key[i+1]-key[i] <= 1), enabling coalesced I/O.
func GroupConsecutivePages[K Key](keys []K) [][]K {
	if len(keys) == 0 {
		return nil
	}
	var groups [][]K
	start := 0
	for i := 1; i < len(keys); i++ {
		if keys[i].Uint64()-keys[i-1].Uint64() > 1 {
			groups = append(groups, keys[start:i])
			start = i
		}
	}
	groups = append(groups, keys[start:])
	return groups
}

// evictLocked reclaims up to n LRU entries whose state is UpToDate or
// Uninit and whose refs is 0 (no outstanding handles); dirty pages are
// skipped regardless of age, per the cache's eviction invariant. Must be
// called with c.mu held.
func (c *Cache[K]) evictLocked(n int) int {
	evicted := 0
	elem := c.lru.Back()
	for elem != nil && evicted < n {
		prev := elem.Prev()
		e := elem.Value.(*pageEntry[K])
		if e.refs.Load() == 0 && e.page.state.Load().evictable() {
			c.lru.Remove(elem)
			delete(c.entries, e.key)
			c.alloc.FreePage(e.page.buf)
			evicted++
		}
		elem = prev
	}
	if evicted > 0 {
		c.pollee.AddEvents(poll.Out)
		c.pollee.DelEvents(poll.Out)
	}
	return evicted
}

// Evict is the evictor-facing entry point: reclaim up to n evictable
// pages under memory pressure.
func (c *Cache[K]) Evict(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(n)
}
