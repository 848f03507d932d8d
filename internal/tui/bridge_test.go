package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/toast"
)

func TestBridge_CoalescesChanges(t *testing.T) {
	b := NewBridge()

	b.Render([]notify.Item{{ID: "1"}})
	b.Render([]notify.Item{{ID: "1"}, {ID: "2"}})
	require.NoError(t, b.SetTitle("(2) Cinq"))
	require.NoError(t, b.Show(toast.Toast{Title: "Alice"}))

	msg := b.Wait()()
	assert.IsType(t, drainMsg{}, msg)

	c := b.Drain()
	assert.True(t, c.HasItems)
	assert.Len(t, c.Items, 2)
	assert.True(t, c.HasTitle)
	assert.Equal(t, "(2) Cinq", c.Title)
	require.True(t, c.HasToast)
	require.NotNil(t, c.Toast)
	assert.Equal(t, "Alice", c.Toast.Title)

	assert.Equal(t, Changes{}, b.Drain(), "drain resets pending changes")
}

func TestBridge_HideClearsToast(t *testing.T) {
	b := NewBridge()
	require.NoError(t, b.Show(toast.Toast{Title: "Alice"}))
	require.NoError(t, b.Hide(toast.Toast{Title: "Alice"}))

	c := b.Drain()
	assert.True(t, c.HasToast)
	assert.Nil(t, c.Toast)
}

func TestBridge_WaitBlocksUntilChange(t *testing.T) {
	b := NewBridge()
	done := make(chan struct{})

	go func() {
		b.Wait()()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("wait returned without a change")
	case <-time.After(20 * time.Millisecond):
	}

	b.Render(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after a change")
	}
}
