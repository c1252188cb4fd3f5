package bits

import "sync"

// AnyMap is a small type-erased extension map, used by BioReq (decorator
// disks attaching metadata) and vfs.IoctlCmd (command-specific typed
// payload fallback). It is deliberately a thin wrapper over a plain map
// guarded by a mutex rather than sync.Map: extension maps are small and
// read/written a handful of times per request, so a mutex is both simpler
// and (per the teacher's own ChunkedIngress rationale in eventloop/loop.go)
// not meaningfully slower at this scale.
type AnyMap struct {
	mu sync.Mutex
	m  map[string]any
}

// Set stores a value under key.
func (a *AnyMap) Set(key string, val any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.m == nil {
		a.m = make(map[string]any)
	}
	a.m[key] = val
}

// Get retrieves a value previously stored under key.
func (a *AnyMap) Get(key string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.m == nil {
		return nil, false
	}
	v, ok := a.m[key]
	return v, ok
}

// Delete removes key, if present.
func (a *AnyMap) Delete(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.m, key)
}
