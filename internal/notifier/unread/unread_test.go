package unread

import (
	"context"
	"sync"
	"testing"

	"github.com/colonyops/cinq/internal/core/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_NeverNegative(t *testing.T) {
	ctx := context.Background()
	c := New(kvtest.New())

	assert.Equal(t, 0, c.Dec(ctx))
	assert.Equal(t, 0, c.Set(ctx, -5))
	assert.Equal(t, 1, c.Inc(ctx))
	assert.Equal(t, 0, c.Dec(ctx))
	assert.Equal(t, 0, c.Dec(ctx))
}

func TestCounter_Raise(t *testing.T) {
	ctx := context.Background()
	c := New(kvtest.New())

	c.Set(ctx, 2)
	assert.Equal(t, 5, c.Raise(ctx, 5))
	assert.Equal(t, 5, c.Raise(ctx, 3), "raise never lowers")
}

func TestCounter_PersistsAndLoads(t *testing.T) {
	ctx := context.Background()
	store := kvtest.New()

	c := New(store)
	c.Set(ctx, 4)
	c.Dec(ctx)

	assert.JSONEq(t, "3", string(store.Raw("cinq:unread_count")))

	restored := New(store)
	n, err := restored.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, restored.Get())
}

func TestCounter_LoadClampsNegative(t *testing.T) {
	ctx := context.Background()
	store := kvtest.New()
	require.NoError(t, store.Set(ctx, "cinq:unread_count", -3))

	n, err := New(store).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCounter_ListenersSeeEveryMutationInOrder(t *testing.T) {
	ctx := context.Background()
	c := New(kvtest.New())

	var mu sync.Mutex
	var seen []int
	c.OnChange(func(n int) {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	})

	c.Inc(ctx)
	c.Inc(ctx)
	c.Clear(ctx)

	assert.Equal(t, []int{1, 2, 0}, seen)
}

func TestCounter_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	c := New(kvtest.New())

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Get())
}
