// Package unread tracks the persisted count of unread notifications.
package unread

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/kv"
	"github.com/colonyops/cinq/internal/core/logging"
)

// Key is the KV key of the persisted count, relative to the "cinq" scope.
const Key = "unread_count"

// Counter is the single writer of the unread count. The count never goes
// below zero. Listeners run after every mutation, in mutation order.
type Counter struct {
	kv  *kv.TypedKV[int]
	log zerolog.Logger

	// opMu serializes mutate-and-notify so listeners observe counts in order.
	opMu sync.Mutex

	mu        sync.RWMutex
	count     int
	listeners []func(int)
}

// New creates a counter backed by store.
func New(store kv.KV) *Counter {
	return &Counter{
		kv:  kv.Scoped[int](store, "cinq"),
		log: logging.Component("unread"),
	}
}

// Load restores the persisted count. Negative saved values are clamped.
func (c *Counter) Load(ctx context.Context) (int, error) {
	n, err := c.kv.GetOr(ctx, Key, 0)
	if err != nil {
		c.log.Warn().Err(err).Msg("saved unread count unreadable, starting from zero")
		n = 0
	}

	c.mu.Lock()
	c.count = max(n, 0)
	n = c.count
	c.mu.Unlock()

	return n, nil
}

// Get returns the current count.
func (c *Counter) Get() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// OnChange registers fn to receive the count after every mutation.
func (c *Counter) OnChange(fn func(int)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Inc adds one unread item.
func (c *Counter) Inc(ctx context.Context) int {
	return c.mutate(ctx, func(n int) int { return n + 1 })
}

// Dec removes one unread item, stopping at zero.
func (c *Counter) Dec(ctx context.Context) int {
	return c.mutate(ctx, func(n int) int { return n - 1 })
}

// Set replaces the count.
func (c *Counter) Set(ctx context.Context, n int) int {
	return c.mutate(ctx, func(int) int { return n })
}

// Raise lifts the count to at least n. Used to reconcile with a
// server-reported count without double counting locally shown items.
func (c *Counter) Raise(ctx context.Context, n int) int {
	return c.mutate(ctx, func(cur int) int { return max(cur, n) })
}

// Clear resets the count to zero.
func (c *Counter) Clear(ctx context.Context) int {
	return c.Set(ctx, 0)
}

func (c *Counter) mutate(ctx context.Context, fn func(int) int) int {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	next := max(fn(c.count), 0)
	c.count = next
	listeners := make([]func(int), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	if err := c.kv.Set(ctx, Key, next); err != nil {
		c.log.Error().Err(err).Int("count", next).Msg("failed to persist unread count")
	}

	for _, fn := range listeners {
		fn(next)
	}

	return next
}
