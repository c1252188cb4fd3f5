package pagecache

import (
	"context"
	"sync"
	"time"

	"github.com/pbnjay/memory"
)

// Evictable is what a Cache[K] registers with the Evictor: a user-supplied
// flush (drain dirty pages before reclaiming clean ones out from under a
// future write) and an evict call bounded to n pages.
type Evictable interface {
	FlushOnce(ctx context.Context) error
	Evict(n int) int
}

// Evictor is a process-wide background task that watches free system
// memory (via github.com/pbnjay/memory, the teacher pack's host-memory
// query library) and, when it drops below a threshold, asks every
// registered Cache to flush its dirty pages and then evict up to
// batchSize clean ones. One Evictor instance is normally shared by the
// whole process; NewEvictor does not enforce a singleton so tests can run
// several in isolation.
type Evictor struct {
	mu            sync.Mutex
	caches        []Evictable
	lowMemBytes   uint64
	batchSize     int
	pollInterval  time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
}

// EvictorConfig configures an Evictor. Zero values take the defaults noted
// per field.
type EvictorConfig struct {
	// LowMemBytes is the free-memory threshold that triggers a pass.
	// Defaults to 64 MiB.
	LowMemBytes uint64
	// BatchSize bounds pages evicted per cache per pass. Defaults to 64.
	BatchSize int
	// PollInterval is how often free memory is sampled. Defaults to 1s.
	PollInterval time.Duration
}

func (c EvictorConfig) withDefaults() EvictorConfig {
	if c.LowMemBytes == 0 {
		c.LowMemBytes = 64 * 1024 * 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// NewEvictor starts an Evictor's background memory-watching loop.
func NewEvictor(config *EvictorConfig) *Evictor {
	cfg := EvictorConfig{}
	if config != nil {
		cfg = *config
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	e := &Evictor{
		lowMemBytes:  cfg.LowMemBytes,
		batchSize:    cfg.BatchSize,
		pollInterval: cfg.PollInterval,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go e.run(ctx)
	return e
}

// Register adds c to the set of caches watched for memory pressure.
func (e *Evictor) Register(c Evictable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caches = append(e.caches, c)
}

// Close stops the background loop.
func (e *Evictor) Close() {
	e.cancel()
	<-e.done
}

// RunPass forces one flush+evict pass across every registered cache,
// regardless of current free memory. Used by tests and by Close-time
// drain callers that don't want to wait for the poll tick.
func (e *Evictor) RunPass(ctx context.Context) {
	e.mu.Lock()
	caches := append([]Evictable(nil), e.caches...)
	e.mu.Unlock()

	for _, c := range caches {
		_ = c.FlushOnce(ctx)
		c.Evict(e.batchSize)
	}
}

func (e *Evictor) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if memory.FreeMemory() < e.lowMemBytes {
				e.RunPass(ctx)
			}
		}
	}
}
