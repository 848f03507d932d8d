package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cinq/internal/core/config"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/toast"
)

func openTestApp(t *testing.T, dataDir string) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = dataDir
	cfg.Toast.Desktop = false
	cfg.Badge.Output = dataDir + "/favicon.png"

	app, err := Open(&cfg)
	require.NoError(t, err)
	return app
}

func TestApp_InboxPersistsAcrossRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	app := openTestApp(t, dir)
	n := app.Notifier(Surfaces{})
	require.NoError(t, n.Init(ctx))

	shown, ok := n.Center.Show(ctx, notify.Item{Title: "Alice", Body: "salut"})
	require.True(t, ok)
	require.NoError(t, app.Close())

	app = openTestApp(t, dir)
	t.Cleanup(func() { _ = app.Close() })
	n = app.Notifier(Surfaces{})
	require.NoError(t, n.Init(ctx))

	items := n.Center.Items()
	require.Len(t, items, 1)
	assert.Equal(t, shown.ID, items[0].ID)
	assert.False(t, items[0].Read)
	assert.Equal(t, 1, n.Unread.Get())
}

type recordingSurface struct {
	shown  []string
	hidden int
	err    error
}

func (r *recordingSurface) Show(t toast.Toast) error {
	r.shown = append(r.shown, t.Title)
	return r.err
}

func (r *recordingSurface) Hide(toast.Toast) error {
	r.hidden++
	return nil
}

func TestFanout(t *testing.T) {
	a, b := &recordingSurface{}, &recordingSurface{err: errors.New("dbus down")}

	assert.Same(t, a, fanout(nil, a), "a single surface is returned as is")

	f := fanout(a, nil, b)
	err := f.Show(toast.Toast{Title: "Alice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dbus down")
	assert.Equal(t, []string{"Alice"}, a.shown)
	assert.Equal(t, []string{"Alice"}, b.shown)

	require.NoError(t, f.Hide(toast.Toast{}))
	assert.Equal(t, 1, a.hidden)
	assert.Equal(t, 1, b.hidden)
}
