package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cinq/internal/core/eventbus"
	"github.com/colonyops/cinq/internal/core/eventbus/testbus"
	"github.com/colonyops/cinq/internal/core/kv/kvtest"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/poll"
	"github.com/colonyops/cinq/internal/notifier/settings"
	"github.com/colonyops/cinq/internal/platform/auth"
)

type stubFetcher struct {
	mu  sync.Mutex
	res poll.Result
}

func (f *stubFetcher) Poll(context.Context, string, time.Time) (poll.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res, nil
}

type titleRecorder struct {
	mu     sync.Mutex
	titles []string
}

func (r *titleRecorder) SetTitle(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, s)
	return nil
}

func (r *titleRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.titles) == 0 {
		return ""
	}
	return r.titles[len(r.titles)-1]
}

type navRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (r *navRecorder) Navigate(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	return nil
}

func (r *navRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

type harness struct {
	n       *Notifier
	bus     *testbus.Bus
	fetcher *stubFetcher
	title   *titleRecorder
	nav     *navRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bus:     testbus.New(t),
		fetcher: &stubFetcher{},
		title:   &titleRecorder{},
		nav:     &navRecorder{},
	}
	h.n = New(Deps{
		Bus:     h.bus.EventBus,
		KV:      kvtest.New(),
		Fetcher: h.fetcher,
		Tokens:  auth.Static("tok"),
		Poll: poll.Options{
			Foreground: time.Hour, Background: time.Hour, Idle: time.Hour,
			MaxBackoff: 4, BackoffResetAfter: time.Minute,
			AppURL: "http://localhost:8080/app.html",
		},
		IdleThreshold: 5 * time.Minute,
		Navigator:     h.nav,
		Title:         h.title,
	})
	require.NoError(t, h.n.Init(context.Background()))
	return h
}

func TestNotifier_InitSetsTitle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "Cinq", h.title.last())
	require.NoError(t, h.n.Init(context.Background()), "second init is a no-op")
}

func TestNotifier_PollArrival(t *testing.T) {
	h := newHarness(t)
	h.fetcher.res = poll.Result{
		NewCount: 3,
		Latest:   &poll.Message{SenderName: "Alice", IsPing: true},
	}

	require.NoError(t, h.n.Poller.RunCycle(context.Background()))

	require.Eventually(t, func() bool { return h.n.Unread.Get() == 3 }, time.Second, 5*time.Millisecond)
	items := h.n.Center.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Alice", items[0].Title)
	assert.Equal(t, "💫 Ping !", items[0].Body)
	assert.Equal(t, notify.TypePing, items[0].Type)
	assert.Equal(t, "http://localhost:8080/app.html", items[0].URL)
	assert.Eventually(t, func() bool { return h.title.last() == "(3) Cinq" }, time.Second, 5*time.Millisecond)
	h.bus.AssertPublished(t, eventbus.EventNotificationShown)
}

func TestNotifier_CountOnlyArrival(t *testing.T) {
	h := newHarness(t)
	h.fetcher.res = poll.Result{NewCount: 2}

	require.NoError(t, h.n.Poller.RunCycle(context.Background()))

	require.Eventually(t, func() bool { return h.n.Unread.Get() == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.n.Center.Items())
}

func TestNotifier_BackgroundNewMessage(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.bus.PublishBackgroundMessage(context.Background(), eventbus.BackgroundMessagePayload{
		Type: MessageNewMessage,
		Data: map[string]any{"senderName": "Bob", "content": "salut"},
	}))

	require.Eventually(t, func() bool { return h.n.Unread.Get() == 1 }, time.Second, 5*time.Millisecond)
	items := h.n.Center.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Bob", items[0].Title)
	assert.Equal(t, "salut", items[0].Body)
	assert.Equal(t, notify.TypeMessage, items[0].Type)
}

func TestNotifier_BackgroundDefaults(t *testing.T) {
	h := newHarness(t)

	h.n.HandleBackgroundMessage(context.Background(), eventbus.BackgroundMessagePayload{
		Type: MessageNewMessage,
		Data: map[string]any{"isPing": true},
	})

	items := h.n.Center.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Nouveau message", items[0].Title)
	assert.Equal(t, notify.TypePing, items[0].Type)
}

func TestNotifier_BackgroundClicked(t *testing.T) {
	h := newHarness(t)

	h.n.HandleBackgroundMessage(context.Background(), eventbus.BackgroundMessagePayload{
		Type: MessageNotificationClicked,
		Data: map[string]any{"url": "/app.html#chat"},
	})
	h.n.HandleBackgroundMessage(context.Background(), eventbus.BackgroundMessagePayload{
		Type: MessageNotificationClicked,
		Data: map[string]any{},
	})
	h.n.HandleBackgroundMessage(context.Background(), eventbus.BackgroundMessagePayload{Type: "SOMETHING_ELSE"})

	assert.Equal(t, []string{"/app.html#chat"}, h.nav.all())
	h.bus.AssertPublished(t, eventbus.EventNotificationClicked)
}

func TestNotifier_BadgeSettingClearsSurfaces(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.n.Unread.Set(ctx, 4)
	require.Equal(t, "(4) Cinq", h.title.last())

	_, err := h.n.Settings.Update(ctx, settings.Patch{Badge: settings.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, "Cinq", h.title.last())

	_, err = h.n.Settings.Update(ctx, settings.Patch{Badge: settings.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, "(4) Cinq", h.title.last())
	h.bus.AssertPublished(t, eventbus.EventSettingsChanged)
}

func TestNotifier_MarkAllAsReadResetsBadge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for range 5 {
		h.n.Center.Show(ctx, notify.Item{Title: "x"})
	}
	require.Equal(t, "(5) Cinq", h.title.last())

	h.n.Center.MarkAllAsRead(ctx)

	assert.Equal(t, 0, h.n.Unread.Get())
	assert.Equal(t, "Cinq", h.title.last())
}

func TestNotifier_ToastClickMarksRead(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	item, ok := h.n.Center.Show(ctx, notify.Item{Title: "x", URL: "/app.html"})
	require.True(t, ok)
	require.NoError(t, h.n.Toast.Click())

	found, _ := h.n.Center.Find(item.ID)
	assert.True(t, found.Read)
	assert.Equal(t, 0, h.n.Unread.Get())
	assert.Equal(t, []string{"/app.html"}, h.nav.all())
}

type sourceRecorder struct {
	ids     []string
	sources []string
}

func (r *sourceRecorder) MarkAsRead(ctx context.Context, id string) bool {
	r.ids = append(r.ids, id)
	r.sources = append(r.sources, logging.GetSource(ctx))
	return true
}

func TestReadMarker_TagsToastSource(t *testing.T) {
	rec := &sourceRecorder{}
	readMarker{rec}.MarkItemRead("n-1")

	assert.Equal(t, []string{"n-1"}, rec.ids)
	assert.Equal(t, []string{"toast"}, rec.sources)
}

func TestNotifier_StartStop(t *testing.T) {
	h := newHarness(t)
	h.fetcher.res = poll.Result{NewCount: 1}

	h.n.Start(context.Background())
	require.Eventually(t, func() bool { return h.n.Unread.Get() == 1 }, time.Second, 5*time.Millisecond)

	h.n.Stop()
	select {
	case <-h.n.Poller.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, poll.Stopped, h.n.Poller.State())
}
