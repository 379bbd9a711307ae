// Package cache memoizes shaped query responses.
//
// Eviction is strict FIFO over insertion order: reading an entry never moves
// it, and an entry is never rewritten while resident. The underlying dataset
// is immutable for the life of the process, so there is no TTL and no
// invalidation.
package cache

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/nicktill/ipedscomps/pkg/metrics"
	"github.com/nicktill/ipedscomps/pkg/storage"
)

// Key identifies one query: normalized code, optional award level, shape.
type Key struct {
	Code    string
	AwLevel *int
	Grouped bool
}

// String renders the key, e.g. "51.2001|7|flat" or "51.2001|none|grouped".
func (k Key) String() string {
	level := "none"
	if k.AwLevel != nil {
		level = strconv.Itoa(*k.AwLevel)
	}
	return k.Code + "|" + level + "|" + k.Shape()
}

// Shape returns "grouped" or "flat".
func (k Key) Shape() string {
	if k.Grouped {
		return "grouped"
	}
	return "flat"
}

// FIFO is a bounded response cache that evicts the oldest insertion first.
type FIFO struct {
	max    int
	store  storage.Storage
	logger *zap.SugaredLogger

	mu       sync.Mutex
	order    []string
	resident map[string]struct{}
}

// NewFIFO creates a cache holding at most max entries in store.
func NewFIFO(max int, store storage.Storage, logger *zap.SugaredLogger) *FIFO {
	if max < 1 {
		max = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FIFO{
		max:      max,
		store:    store,
		logger:   logger,
		resident: make(map[string]struct{}, max),
	}
}

// Get returns the cached payload for key. A storage error counts as a miss.
func (c *FIFO) Get(ctx context.Context, key Key) ([]byte, bool) {
	k := key.String()

	c.mu.Lock()
	_, ok := c.resident[k]
	c.mu.Unlock()
	if !ok {
		metrics.CacheMisses.WithLabelValues(key.Shape()).Inc()
		return nil, false
	}

	payload, ok, err := c.store.Get(ctx, k)
	if err != nil || !ok {
		if err != nil {
			c.logger.Warnw("Cache read failed", "key", k, "error", err)
		}
		metrics.CacheMisses.WithLabelValues(key.Shape()).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(key.Shape()).Inc()
	return payload, true
}

// Put inserts payload under key. A key that is already resident is left
// untouched. Inserting past the limit evicts the oldest entry.
func (c *FIFO) Put(ctx context.Context, key Key, payload []byte) error {
	k := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.resident[k]; ok {
		return nil
	}
	if err := c.store.Put(ctx, k, payload); err != nil {
		return err
	}
	c.resident[k] = struct{}{}
	c.order = append(c.order, k)

	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order[0] = ""
		c.order = c.order[1:]
		delete(c.resident, oldest)
		if err := c.store.Delete(context.WithoutCancel(ctx), oldest); err != nil {
			c.logger.Warnw("Cache eviction failed", "key", oldest, "error", err)
		}
		metrics.CacheEvictions.Inc()
		c.logger.Debugw("Evicted cache entry", "key", oldest)
	}
	metrics.CacheEntries.Set(float64(len(c.order)))
	return nil
}

// Len returns the number of resident entries.
func (c *FIFO) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Keys returns resident keys, oldest first.
func (c *FIFO) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Max returns the configured entry limit.
func (c *FIFO) Max() int {
	return c.max
}

// Stats returns statistics of the underlying storage.
func (c *FIFO) Stats(ctx context.Context) (*storage.Stats, error) {
	return c.store.Stats(ctx)
}
