package pagecache

import (
	"context"
	"sync"
	"time"

	"github.com/enclavekernel/libos/waiter"
)

// FlushConfig configures a Flusher. Defaults follow the same
// zero-value-means-default shape as microbatch.BatcherConfig.
type FlushConfig struct {
	// Low is the dirty-page count a flush cycle runs down to before the
	// Flusher goes back to sleep. Defaults to 64.
	Low int
	// High is the dirty-page count that wakes a sleeping Flusher.
	// Defaults to 256.
	High int
	// MaxBatch bounds how many pages pop_dirty_to_flush hands back per
	// Flush call. Defaults to 32.
	MaxBatch int
	// PollInterval is a backstop: even with no explicit wake, the Flusher
	// rechecks the dirty count on this interval. Defaults to 5s, the
	// same role microbatch.BatcherConfig.FlushInterval plays as a
	// time-based trigger alongside the size-based one.
	PollInterval time.Duration
}

func (c FlushConfig) withDefaults() FlushConfig {
	if c.Low <= 0 {
		c.Low = 64
	}
	if c.High <= 0 {
		c.High = 256
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 32
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.High <= c.Low {
		panic("pagecache: FlushConfig.High must be greater than Low")
	}
	return c
}

// WriteBack performs the actual I/O for one batch of dirty pages. On
// success the Flusher transitions every handle to UpToDate; on error it
// transitions them back to Dirty so they are retried on the next cycle.
// Implementations must call Handle.Lock/Unlock themselves if they need to
// read page contents; the Flusher only manages state and Release.
type WriteBack[K Key] func(ctx context.Context, handles []*Handle[K]) error

// Flusher runs pop_dirty_to_flush/WriteBack cycles whenever the dirty
// count crosses High, down to Low, on a background goroutine parked on a
// waiter.Queue between cycles. Grounded on microbatch.Batcher's
// size-or-interval flush decision, adapted from "batch of jobs" to
// "batch of dirty pages."
type Flusher[K Key] struct {
	cache  *Cache[K]
	cfg    FlushConfig
	wb     WriteBack[K]
	queue  *waiter.Queue
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	stop   sync.Once
}

// NewFlusher creates and starts a Flusher attached to cache. config may be
// nil. Panics if wb is nil or config.High <= config.Low.
func NewFlusher[K Key](cache *Cache[K], config *FlushConfig, wb WriteBack[K]) *Flusher[K] {
	if wb == nil {
		panic("pagecache: nil WriteBack")
	}
	cfg := FlushConfig{}
	if config != nil {
		cfg = *config
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	f := &Flusher[K]{
		cache:  cache,
		cfg:    cfg,
		wb:     wb,
		queue:  waiter.NewQueue(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	cache.mu.Lock()
	cache.dirtyHook = func(n int) {
		if n >= cfg.High {
			f.queue.WakeAll()
		}
	}
	cache.mu.Unlock()

	go f.run()
	return f
}

// Close stops the background flush loop and waits for it to exit. Does
// not run a final flush; callers that need drain-on-shutdown should call
// FlushOnce first.
func (f *Flusher[K]) Close() {
	f.stop.Do(func() {
		f.cancel()
		f.queue.WakeAll()
	})
	<-f.done
}

// FlushOnce runs flush cycles until the dirty count drops below Low or ctx
// is done, regardless of the current watermark. Useful for an explicit
// sync() call or graceful shutdown.
func (f *Flusher[K]) FlushOnce(ctx context.Context) error {
	for f.cache.NumDirtyPages() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.cycle(ctx); err != nil {
			return err
		}
		if f.cache.NumDirtyPages() < f.cfg.Low {
			return nil
		}
	}
	return nil
}

func (f *Flusher[K]) run() {
	defer close(f.done)

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if f.cache.NumDirtyPages() >= f.cfg.High {
			for f.cache.NumDirtyPages() >= f.cfg.Low {
				if f.ctx.Err() != nil {
					return
				}
				if err := f.cycle(f.ctx); err != nil {
					break
				}
			}
		}

		w := f.queue.Enqueue()
		select {
		case <-w.Done():
		case <-ticker.C:
			f.queue.Remove(w)
		case <-f.ctx.Done():
			f.queue.Remove(w)
			return
		}
	}
}

// Evict forwards to the underlying cache, so a Flusher can itself be
// registered with an Evictor as the Evictable for its cache.
func (f *Flusher[K]) Evict(n int) int {
	return f.cache.Evict(n)
}

// cycle pops one batch, runs WriteBack, and settles each handle's state.
func (f *Flusher[K]) cycle(ctx context.Context) error {
	handles := f.cache.PopDirtyToFlush(f.cfg.MaxBatch)
	if len(handles) == 0 {
		return nil
	}

	err := f.wb(ctx, handles)
	for _, h := range handles {
		if err != nil {
			h.SetState(Dirty)
		} else {
			h.SetState(UpToDate)
		}
		h.Release()
	}
	return err
}
