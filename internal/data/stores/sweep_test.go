package stores

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepExpired(context.Context) error {
	s.calls.Add(1)
	return s.err
}

func TestSweep_RunsUntilCancelled(t *testing.T) {
	s := &countingSweeper{err: errors.New("busy")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Sweep(ctx, s, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop after cancel")
	}
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := newTestKVStore(t)

	require.NoError(t, store.SetTTL(ctx, "cinq:short", 1, time.Millisecond))
	require.NoError(t, store.Set(ctx, "cinq:long", 2))

	go Sweep(ctx, store, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := store.db.Queries().KVGet(ctx, "cinq:short")
		return errors.Is(err, sql.ErrNoRows)
	}, time.Second, 5*time.Millisecond)

	_, err := store.db.Queries().KVGet(ctx, "cinq:long")
	assert.NoError(t, err)
}
