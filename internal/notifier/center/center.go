// Package center holds the in-app notification list and its read state.
package center

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/eventbus"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

// MaxItems is the number of items the center retains. Older items are evicted.
const MaxItems = 50

// Counter is the unread count the center writes through.
type Counter interface {
	Inc(ctx context.Context) int
	Dec(ctx context.Context) int
	Clear(ctx context.Context) int
	Get() int
}

// SettingsReader exposes the current notification settings.
type SettingsReader interface {
	Get() notify.Settings
}

// SoundPlayer plays the cue for a notification type.
type SoundPlayer interface {
	Play(t notify.Type)
}

// Toaster shows a transient toast for a single item.
type Toaster interface {
	Present(item notify.Item)
}

// Panel draws the open notification list. An empty slice means the empty state.
type Panel interface {
	Render(items []notify.Item)
}

// Navigator opens a notification's target.
type Navigator interface {
	Navigate(url string) error
}

// Publisher receives center events.
type Publisher interface {
	PublishNotificationShown(p eventbus.NotificationShownPayload)
}

// Deps are the collaborators of a Center. Store, Sound, Toast, Panel,
// Navigator and Publisher are optional.
type Deps struct {
	Counter   Counter
	Settings  SettingsReader
	Store     notify.Store
	Sound     SoundPlayer
	Toast     Toaster
	Panel     Panel
	Navigator Navigator
	Publisher Publisher

	// Now overrides the clock used for item timestamps.
	Now func() time.Time
}

// Center is the notification center. It is safe for concurrent use.
type Center struct {
	deps Deps
	log  zerolog.Logger

	// opMu spans a read-state change and the matching counter write so
	// the count always equals the unread items.
	opMu sync.Mutex

	mu    sync.RWMutex
	items []notify.Item
	open  bool
}

// New creates an empty, closed center.
func New(deps Deps) *Center {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Center{
		deps: deps,
		log:  logging.Component("center"),
	}
}

// Load restores persisted items, newest first.
func (c *Center) Load(ctx context.Context) error {
	if c.deps.Store == nil {
		return nil
	}

	items, err := c.deps.Store.List(ctx, MaxItems)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

// Show adds item to the top of the list, counts it as unread and alerts the
// user. An unread item pushed out of the list stops counting. It returns false and leaves all state untouched when in-app
// notifications are disabled.
func (c *Center) Show(ctx context.Context, item notify.Item) (notify.Item, bool) {
	if !c.deps.Settings.Get().InApp {
		return notify.Item{}, false
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	item.ID = id.String()
	item.Timestamp = c.deps.Now().UTC()
	item.Read = false
	if item.Type == "" {
		item.Type = notify.TypeMessage
	}

	c.opMu.Lock()
	c.mu.Lock()
	c.items = append([]notify.Item{item}, c.items...)
	evicted := 0
	if len(c.items) > MaxItems {
		for _, old := range c.items[MaxItems:] {
			if !old.Read {
				evicted++
			}
		}
		c.items = c.items[:MaxItems]
	}
	c.mu.Unlock()

	c.persist(ctx, item)
	c.deps.Counter.Inc(ctx)
	for range evicted {
		c.deps.Counter.Dec(ctx)
	}
	c.opMu.Unlock()

	if c.deps.Sound != nil {
		c.deps.Sound.Play(item.Type)
	}
	if c.deps.Toast != nil {
		c.deps.Toast.Present(item)
	}
	c.renderIfOpen()

	if c.deps.Publisher != nil {
		c.deps.Publisher.PublishNotificationShown(eventbus.NotificationShownPayload{Item: item})
	}

	return item, true
}

func (c *Center) persist(ctx context.Context, item notify.Item) {
	if c.deps.Store == nil {
		return
	}
	if err := c.deps.Store.Save(ctx, item); err != nil {
		c.log.Error().Err(err).Str("id", item.ID).Msg("failed to save notification")
		return
	}
	if err := c.deps.Store.Trim(ctx, MaxItems); err != nil {
		c.log.Error().Err(err).Msg("failed to trim notifications")
	}
}

// MarkAsRead marks the item read and decrements the unread count. It returns
// false when the item is unknown or already read.
func (c *Center) MarkAsRead(ctx context.Context, id string) bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	changed := false
	for i := range c.items {
		if c.items[i].ID == id {
			if !c.items[i].Read {
				c.items[i].Read = true
				changed = true
			}
			break
		}
	}
	c.mu.Unlock()

	if !changed {
		return false
	}

	if c.deps.Store != nil {
		if _, err := c.deps.Store.MarkRead(ctx, id); err != nil {
			c.log.Error().Err(err).Str("id", id).Msg("failed to persist read state")
		}
	}
	c.deps.Counter.Dec(ctx)
	c.renderIfOpen()
	return true
}

// MarkAllAsRead marks every item read and resets the unread count.
func (c *Center) MarkAllAsRead(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	for i := range c.items {
		c.items[i].Read = true
	}
	c.mu.Unlock()

	if c.deps.Store != nil {
		if _, err := c.deps.Store.MarkAllRead(ctx); err != nil {
			c.log.Error().Err(err).Msg("failed to persist read state")
		}
	}
	c.deps.Counter.Clear(ctx)
	c.renderIfOpen()
}

// Click marks the item read and navigates to its URL, if any.
func (c *Center) Click(ctx context.Context, id string) error {
	c.MarkAsRead(ctx, id)

	item, ok := c.Find(id)
	if !ok || item.URL == "" || c.deps.Navigator == nil {
		return nil
	}
	if err := c.deps.Navigator.Navigate(item.URL); err != nil {
		return fmt.Errorf("navigate to %s: %w", item.URL, err)
	}
	return nil
}

// Open shows the panel. Read state is unchanged.
func (c *Center) Open() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	c.render()
}

// Close hides the panel.
func (c *Center) Close() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

// Toggle opens a closed panel and closes an open one.
func (c *Center) Toggle() {
	if c.IsOpen() {
		c.Close()
		return
	}
	c.Open()
}

// IsOpen reports whether the panel is shown.
func (c *Center) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Items returns a snapshot of the list, newest first.
func (c *Center) Items() []notify.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]notify.Item, len(c.items))
	copy(out, c.items)
	return out
}

// Find returns the item with the given id.
func (c *Center) Find(id string) (notify.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return notify.Item{}, false
}

// UnreadItems counts items not yet read.
func (c *Center) UnreadItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		if !it.Read {
			n++
		}
	}
	return n
}

func (c *Center) renderIfOpen() {
	if c.IsOpen() {
		c.render()
	}
}

func (c *Center) render() {
	if c.deps.Panel == nil {
		return
	}
	c.deps.Panel.Render(c.Items())
}
