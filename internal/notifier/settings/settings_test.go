package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/colonyops/cinq/internal/core/kv/kvtest"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNothingSaved(t *testing.T) {
	s := New(kvtest.New())

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notify.DefaultSettings(), got)
	assert.Equal(t, got, s.Get())
}

func TestLoad_MergesSavedOverDefaults(t *testing.T) {
	ctx := context.Background()
	store := kvtest.New()
	require.NoError(t, store.Set(ctx, Key, map[string]bool{"sound": false}))

	s := New(store)
	got, err := s.Load(ctx)
	require.NoError(t, err)

	assert.False(t, got.Sound)
	assert.True(t, got.InApp, "missing field keeps default")
	assert.True(t, got.Badge, "missing field keeps default")
	assert.False(t, got.Push)
}

func TestLoad_CorruptDataFallsBack(t *testing.T) {
	ctx := context.Background()
	store := kvtest.New()
	require.NoError(t, store.Set(ctx, Key, "garbage"))

	got, err := New(store).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.DefaultSettings(), got)
}

func TestUpdate_PartialPatchPersists(t *testing.T) {
	ctx := context.Background()
	store := kvtest.New()
	s := New(store)

	got, err := s.Update(ctx, Patch{Badge: Bool(false)})
	require.NoError(t, err)
	assert.False(t, got.Badge)
	assert.True(t, got.Sound)

	reloaded, err := New(store).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, reloaded)
}

func TestUpdate_NotifiesOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	s := New(kvtest.New())

	var calls []notify.Settings
	s.OnChange(func(_, updated notify.Settings) { calls = append(calls, updated) })

	_, err := s.Update(ctx, Patch{Sound: Bool(true)})
	require.NoError(t, err)
	assert.Empty(t, calls, "sound was already on")

	_, err = s.Update(ctx, Patch{Sound: Bool(false)})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Sound)
}

func TestUpdate_PersistFailureStillApplies(t *testing.T) {
	store := kvtest.New()
	store.FailSet = errors.New("disk full")
	s := New(store)

	got, err := s.Update(context.Background(), Patch{Push: Bool(false), InApp: Bool(false)})
	require.Error(t, err)
	assert.False(t, got.InApp)
	assert.False(t, s.Get().InApp)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := New(kvtest.New())
	snapshot := s.Get()
	snapshot.Sound = false
	assert.True(t, s.Get().Sound)
}
