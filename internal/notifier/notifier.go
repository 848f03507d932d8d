// Package notifier assembles the notification subsystem: settings, unread
// count, sound, center, toast, badge, push and the poll scheduler share one
// Notifier and one ordered inbox.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/eventbus"
	"github.com/colonyops/cinq/internal/core/kv"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/badge"
	"github.com/colonyops/cinq/internal/notifier/center"
	"github.com/colonyops/cinq/internal/notifier/poll"
	"github.com/colonyops/cinq/internal/notifier/push"
	"github.com/colonyops/cinq/internal/notifier/settings"
	"github.com/colonyops/cinq/internal/notifier/sound"
	"github.com/colonyops/cinq/internal/notifier/toast"
	"github.com/colonyops/cinq/internal/notifier/unread"
)

// Background message types delivered by the push platform.
const (
	MessageNotificationClicked = eventbus.MessageNotificationClicked
	MessageNewMessage          = eventbus.MessageNewMessage
)

// Navigator opens URLs.
type Navigator interface {
	Navigate(url string) error
}

// TokenSource returns the bearer token, or "" when signed out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Deps are the platform pieces a Notifier is built from. Optional surfaces
// may be nil; the matching feature then degrades silently.
type Deps struct {
	Bus   *eventbus.EventBus
	KV    kv.KV
	Items notify.Store

	Fetcher poll.Fetcher
	Tokens  TokenSource
	Poll    poll.Options
	// IdleThreshold is how long without activity counts as idle.
	IdleThreshold time.Duration

	Player       sound.Player
	MessageSound sound.Cue
	PingSound    sound.Cue

	ToastSurface  toast.Surface
	ToastDuration time.Duration
	Panel         center.Panel
	Navigator     Navigator

	AppBadge  badge.AppBadge
	Renderer  badge.IconRenderer
	Favicon   badge.FaviconSink
	Title     badge.TitleSink
	BaseTitle string

	Permissions    push.Permissions
	PushPlatform   push.Platform
	Registrar      push.Registrar
	VAPIDPublicKey string
}

// Notifier is the context object owning every component.
type Notifier struct {
	Settings *settings.Store
	Unread   *unread.Counter
	Sound    *sound.Manager
	Center   *center.Center
	Toast    *toast.Presenter
	Badge    *badge.Sync
	Push     *push.Manager
	Poller   *poll.Scheduler
	Activity *poll.Tracker

	bus    *eventbus.EventBus
	nav    Navigator
	appURL string
	log    zerolog.Logger

	initOnce sync.Once
	initErr  error
}

// New wires the components together. Nothing runs until Init and Start.
func New(deps Deps) *Notifier {
	n := &Notifier{
		bus:    deps.Bus,
		nav:    deps.Navigator,
		appURL: deps.Poll.AppURL,
		log:    logging.Component("notifier"),
	}

	n.Settings = settings.New(deps.KV)
	n.Unread = unread.New(deps.KV)

	player := deps.Player
	if player == nil {
		player = sound.Silent{}
	}
	n.Sound = sound.New(player, n.Settings, deps.MessageSound, deps.PingSound)

	surface := deps.ToastSurface
	if surface == nil {
		surface = toast.Discard{}
	}
	n.Toast = toast.New(surface, deps.Navigator, nil, deps.ToastDuration)

	var nav center.Navigator
	if deps.Navigator != nil {
		nav = deps.Navigator
	}
	n.Center = center.New(center.Deps{
		Counter:   n.Unread,
		Settings:  n.Settings,
		Store:     deps.Items,
		Sound:     n.Sound,
		Toast:     n.Toast,
		Panel:     deps.Panel,
		Navigator: nav,
		Publisher: deps.Bus,
	})
	n.Toast.SetReadMarker(readMarker{n.Center})

	n.Badge = badge.New(badge.Deps{
		App:       deps.AppBadge,
		Renderer:  deps.Renderer,
		Favicon:   deps.Favicon,
		Title:     deps.Title,
		Settings:  n.Settings,
		BaseTitle: deps.BaseTitle,
	})

	n.Push = push.New(push.Deps{
		Permissions:    deps.Permissions,
		Platform:       deps.PushPlatform,
		Registrar:      deps.Registrar,
		Tokens:         deps.Tokens,
		Settings:       n.Settings,
		VAPIDPublicKey: deps.VAPIDPublicKey,
	})

	n.Activity = poll.NewTracker(deps.IdleThreshold)
	if deps.Fetcher != nil {
		n.Poller = poll.New(deps.Poll, deps.Fetcher, deps.Tokens, deps.Bus, n.Activity, deps.KV)
	}

	return n
}

// readMarker lets the toast mark its item read through the center.
type readMarker struct {
	c interface {
		MarkAsRead(ctx context.Context, id string) bool
	}
}

func (r readMarker) MarkItemRead(id string) {
	r.c.MarkAsRead(logging.WithSource(context.Background(), "toast"), id)
}

// Init restores persisted state and subscribes to the inbox. Only the first
// call has any effect.
func (n *Notifier) Init(ctx context.Context) error {
	n.initOnce.Do(func() {
		n.initErr = n.init(ctx)
	})
	return n.initErr
}

func (n *Notifier) init(ctx context.Context) error {
	current, err := n.Settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	count, err := n.Unread.Load(ctx)
	if err != nil {
		return fmt.Errorf("load unread count: %w", err)
	}
	if err := n.Center.Load(ctx); err != nil {
		n.log.Warn().Err(err).Msg("notification history unavailable")
	}

	if current.Sound {
		n.Sound.Preload()
	}

	n.Unread.OnChange(func(count int) {
		_ = n.Badge.Update(count)
		n.bus.PublishUnreadChanged(eventbus.UnreadChangedPayload{Count: count})
	})
	n.Settings.OnChange(n.settingsChanged)

	n.bus.SubscribeNotificationArrived(n.handleArrival)
	n.bus.SubscribeBackgroundMessage(func(p eventbus.BackgroundMessagePayload) {
		n.HandleBackgroundMessage(context.Background(), p)
	})

	_ = n.Badge.Update(count)

	n.log.Info().Int("unread", count).Bool("push", current.Push).Msg("notifications initialized")
	return nil
}

func (n *Notifier) settingsChanged(old, updated notify.Settings) {
	if updated.Sound && !old.Sound {
		n.Sound.Preload()
	}
	if updated.Badge != old.Badge {
		_ = n.Badge.Update(n.Unread.Get())
	}
	n.bus.PublishSettingsChanged(eventbus.SettingsChangedPayload{Old: old, New: updated})
}

// handleArrival runs on the bus goroutine, so arrivals from every producer
// are applied one at a time in publication order.
func (n *Notifier) handleArrival(p eventbus.NotificationArrivedPayload) {
	ctx := logging.WithSource(context.Background(), string(p.Source))

	if p.Item != nil {
		n.Center.Show(ctx, *p.Item)
	}
	if p.ServerCount > 0 {
		n.Unread.Raise(ctx, p.ServerCount)
	}
}

// HandleBackgroundMessage applies a message forwarded by the push platform.
// Unknown types are ignored.
func (n *Notifier) HandleBackgroundMessage(ctx context.Context, p eventbus.BackgroundMessagePayload) {
	ctx = logging.WithSource(ctx, string(eventbus.SourcePush))

	switch p.Type {
	case MessageNotificationClicked:
		url := stringField(p.Data, "url")
		if url == "" {
			return
		}
		n.bus.PublishNotificationClicked(eventbus.NotificationClickedPayload{URL: url})
		if n.nav == nil {
			return
		}
		if err := n.nav.Navigate(url); err != nil {
			n.log.Warn().Ctx(ctx).Err(err).Str("url", url).Msg("navigation failed")
		}

	case MessageNewMessage:
		item := poll.ItemFromMessage(poll.Message{
			SenderName: stringField(p.Data, "senderName"),
			Content:    stringField(p.Data, "content"),
			IsPing:     boolField(p.Data, "isPing"),
			URL:        stringField(p.Data, "url"),
		}, n.appURL)
		n.Center.Show(ctx, item)

	default:
		n.log.Debug().Ctx(ctx).Str("type", p.Type).Msg("ignoring background message")
	}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func boolField(data map[string]any, key string) bool {
	b, _ := data[key].(bool)
	return b
}

// Start begins polling. Init must have succeeded.
func (n *Notifier) Start(ctx context.Context) {
	if n.Poller != nil {
		n.Poller.Start(ctx)
	}
}

// Stop halts polling and dismisses the toast. An in-flight poll completes.
func (n *Notifier) Stop() {
	if n.Poller != nil {
		n.Poller.Stop()
	}
	n.Toast.Close()
}

// SetVisible forwards focus changes to the poller.
func (n *Notifier) SetVisible(visible bool) {
	if n.Poller != nil {
		n.Poller.SetVisible(visible)
	}
}

// RecordActivity notes a user interaction for idle detection.
func (n *Notifier) RecordActivity(s poll.Signal) {
	n.Activity.Record(s)
}
