package desktop

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/toast"
	"github.com/colonyops/cinq/pkg/executil"
)

type fakeNotifier struct {
	sent   []Notification
	closed []uint32
	nextID uint32
	err    error
}

func (f *fakeNotifier) Notify(n Notification) (uint32, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, n)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeNotifier) Close(id uint32) error {
	f.closed = append(f.closed, id)
	return nil
}

type fakeLauncher struct {
	count   int64
	visible bool
}

func (f *fakeLauncher) SetCount(c int64, v bool) error {
	f.count, f.visible = c, v
	return nil
}

func TestToasts_ShowHide(t *testing.T) {
	n := &fakeNotifier{}
	s := NewToasts(n, "cinq", 5*time.Second)

	require.NoError(t, s.Show(toast.Toast{Icon: "💫", Title: "Alice", Body: "💫 Ping !", Type: notify.TypePing}))
	require.NoError(t, s.Show(toast.Toast{Icon: "💬", Title: "Bob", Body: "hi"}))

	require.Len(t, n.sent, 2)
	assert.Equal(t, "💫 Alice", n.sent[0].Title)
	assert.Equal(t, UrgencyCritical, n.sent[0].Urgency)
	assert.Equal(t, int32(5000), n.sent[0].Timeout)
	assert.Equal(t, uint32(0), n.sent[0].ReplacesID)
	assert.Equal(t, uint32(1), n.sent[1].ReplacesID, "second toast replaces the first")
	assert.Equal(t, UrgencyNormal, n.sent[1].Urgency)

	require.NoError(t, s.Hide(toast.Toast{}))
	require.NoError(t, s.Hide(toast.Toast{}))
	assert.Equal(t, []uint32{2}, n.closed)
}

func TestToasts_Error(t *testing.T) {
	s := NewToasts(&fakeNotifier{err: errors.New("no server")}, "", time.Second)
	require.Error(t, s.Show(toast.Toast{Title: "x"}))
}

func TestBadge(t *testing.T) {
	l := &fakeLauncher{}
	b := NewBadge(l)

	require.NoError(t, b.SetBadge(7))
	assert.Equal(t, int64(7), l.count)
	assert.True(t, l.visible)

	require.NoError(t, b.ClearBadge())
	assert.Equal(t, int64(0), l.count)
	assert.False(t, l.visible)
}

func TestTitleWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewTitleWriter(&buf)

	require.NoError(t, w.SetTitle("(3) Cinq"))
	require.NoError(t, w.SetTitle("evil\x07\x1b]0;x"))

	assert.Equal(t, "\x1b]0;(3) Cinq\x07\x1b]0;evil]0;x\x07", buf.String())
}

func TestOpener(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	o, err := NewOpener(rec, "http://localhost:8080")
	require.NoError(t, err)
	o.cmd = "xdg-open"

	require.NoError(t, o.Navigate("/app.html"))
	require.NoError(t, o.Navigate("https://example.com/x"))

	require.Len(t, rec.Commands, 2)
	assert.Equal(t, "xdg-open", rec.Commands[0].Cmd)
	assert.Equal(t, []string{"http://localhost:8080/app.html"}, rec.Commands[0].Args)
	assert.Equal(t, []string{"https://example.com/x"}, rec.Commands[1].Args)
}

func TestOpener_Error(t *testing.T) {
	rec := &executil.RecordingExecutor{Errors: map[string]error{"xdg-open": errors.New("not found")}}
	o, err := NewOpener(rec, "http://localhost:8080")
	require.NoError(t, err)
	o.cmd = "xdg-open"

	require.Error(t, o.Navigate("/app.html"))
}

func TestOpenCommand(t *testing.T) {
	assert.Equal(t, "open", openCommand("darwin"))
	assert.Equal(t, "xdg-open", openCommand("linux"))
	assert.Equal(t, "explorer", openCommand("windows"))
}
