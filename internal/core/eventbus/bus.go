package eventbus

import (
	"context"
	"sync"
)

// Event names a bus event.
type Event string

const (
	EventBackgroundMessage   Event = "background.message"
	EventNotificationArrived Event = "notification.arrived"
	EventNotificationClicked Event = "notification.clicked"
	EventNotificationShown   Event = "notification.shown"
	EventPollCompleted       Event = "poll.completed"
	EventSettingsChanged     Event = "settings.changed"
	EventUnreadChanged       Event = "unread.changed"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches events to subscribers on a single goroutine.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates a bus with the given buffer size. Start must be called to
// begin dispatching.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is cancelled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	handlers := make([]func(any), len(bus.subs[env.event]))
	copy(handlers, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.panicked(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.subscribed(event)
}

// PublishNotificationArrived enqueues an arrival, blocking while the buffer
// is full. Arrivals are never dropped.
func (bus *EventBus) PublishNotificationArrived(ctx context.Context, p NotificationArrivedPayload) error {
	return bus.sendWait(ctx, EventNotificationArrived, p)
}

func (bus *EventBus) SubscribeNotificationArrived(fn func(NotificationArrivedPayload)) {
	bus.subscribe(EventNotificationArrived, func(p any) { fn(p.(NotificationArrivedPayload)) })
}

// PublishBackgroundMessage enqueues a push platform message, blocking while
// the buffer is full.
func (bus *EventBus) PublishBackgroundMessage(ctx context.Context, p BackgroundMessagePayload) error {
	return bus.sendWait(ctx, EventBackgroundMessage, p)
}

func (bus *EventBus) SubscribeBackgroundMessage(fn func(BackgroundMessagePayload)) {
	bus.subscribe(EventBackgroundMessage, func(p any) { fn(p.(BackgroundMessagePayload)) })
}

func (bus *EventBus) PublishNotificationShown(p NotificationShownPayload) {
	bus.send(EventNotificationShown, p)
}

func (bus *EventBus) SubscribeNotificationShown(fn func(NotificationShownPayload)) {
	bus.subscribe(EventNotificationShown, func(p any) { fn(p.(NotificationShownPayload)) })
}

func (bus *EventBus) PublishNotificationClicked(p NotificationClickedPayload) {
	bus.send(EventNotificationClicked, p)
}

func (bus *EventBus) SubscribeNotificationClicked(fn func(NotificationClickedPayload)) {
	bus.subscribe(EventNotificationClicked, func(p any) { fn(p.(NotificationClickedPayload)) })
}

func (bus *EventBus) PublishPollCompleted(p PollCompletedPayload) {
	bus.send(EventPollCompleted, p)
}

func (bus *EventBus) SubscribePollCompleted(fn func(PollCompletedPayload)) {
	bus.subscribe(EventPollCompleted, func(p any) { fn(p.(PollCompletedPayload)) })
}

func (bus *EventBus) PublishSettingsChanged(p SettingsChangedPayload) {
	bus.send(EventSettingsChanged, p)
}

func (bus *EventBus) SubscribeSettingsChanged(fn func(SettingsChangedPayload)) {
	bus.subscribe(EventSettingsChanged, func(p any) { fn(p.(SettingsChangedPayload)) })
}

func (bus *EventBus) PublishUnreadChanged(p UnreadChangedPayload) {
	bus.send(EventUnreadChanged, p)
}

func (bus *EventBus) SubscribeUnreadChanged(fn func(UnreadChangedPayload)) {
	bus.subscribe(EventUnreadChanged, func(p any) { fn(p.(UnreadChangedPayload)) })
}
