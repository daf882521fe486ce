/*
 * MIT License
 *
 * Copyright (c) 2026 Nguyen Thanh Phuong
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package cache provides the single-slot snapshot cache that sits between
// the HTTP handlers and the collection pipeline. Collection only happens
// on demand; concurrent requests hitting an expired slot share one
// collection cycle instead of each triggering their own.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zhamm/gpustatd/pkg/metrics"
)

// CollectFunc produces one fresh snapshot. Implementations must never
// return nil: a cycle where everything fails still yields a snapshot
// carrying warnings.
type CollectFunc func(ctx context.Context) *metrics.Snapshot

// SnapshotCache caches the most recent snapshot for a fixed TTL.
type SnapshotCache struct {
	collect CollectFunc
	ttl     time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	current  *metrics.Snapshot
	storedAt time.Time

	group singleflight.Group

	// collections counts actual collection cycles, observable in tests.
	collections atomic.Int64

	// now is replaced in tests to drive expiry deterministically.
	now func() time.Time
}

// New creates a snapshot cache around the given collection function.
func New(collect CollectFunc, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	return &SnapshotCache{
		collect: collect,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached snapshot when it is still fresh, otherwise runs
// one collection cycle and caches its result. Concurrent callers during a
// miss are coalesced onto a single in-flight collection; each caller then
// receives the identical snapshot value.
func (c *SnapshotCache) Get(ctx context.Context) *metrics.Snapshot {
	if snap := c.fresh(); snap != nil {
		return snap
	}

	// The collection is shared by every coalesced waiter, so it must not
	// die with the first caller's context: a request that gives up waiting
	// would otherwise cancel the cycle and poison the slot with an
	// all-failed snapshot for the whole TTL window.
	collectCtx := context.WithoutCancel(ctx)

	v, _, shared := c.group.Do("snapshot", func() (interface{}, error) {
		// Re-check under the flight: a caller queued behind a completed
		// collection should reuse its result, not start another.
		if snap := c.fresh(); snap != nil {
			return snap, nil
		}

		start := c.now()
		snap := c.collect(collectCtx)
		c.collections.Add(1)

		c.mu.Lock()
		c.current = snap
		c.storedAt = c.now()
		c.mu.Unlock()

		c.logger.Debug("Snapshot cache refreshed",
			"id", snap.ID,
			"duration", c.now().Sub(start),
		)
		return snap, nil
	})
	if shared {
		c.logger.Debug("Snapshot request coalesced with in-flight collection")
	}
	return v.(*metrics.Snapshot)
}

// fresh returns the cached snapshot if its age is within the TTL.
func (c *SnapshotCache) fresh() *metrics.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	if c.now().Sub(c.storedAt) >= c.ttl {
		return nil
	}
	return c.current
}

// Invalidate drops the cached snapshot so the next Get collects fresh data.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Collections reports how many collection cycles have run.
func (c *SnapshotCache) Collections() int64 {
	return c.collections.Load()
}
