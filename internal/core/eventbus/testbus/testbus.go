// Package testbus runs a real event bus for tests and records what its
// subscribers receive.
package testbus

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/cinq/internal/core/eventbus"
)

// RecordedEvent is one delivered event.
type RecordedEvent struct {
	Event   eventbus.Event
	Payload any
}

// Bus is a started *eventbus.EventBus that records every delivery.
type Bus struct {
	*eventbus.EventBus

	mu      sync.Mutex
	events  []RecordedEvent
	changed chan struct{}
}

// New starts a bus that is stopped when t finishes.
func New(t *testing.T) *Bus {
	t.Helper()

	tb := &Bus{
		EventBus: eventbus.New(64),
		changed:  make(chan struct{}),
	}

	tb.SubscribeBackgroundMessage(recorder[eventbus.BackgroundMessagePayload](tb, eventbus.EventBackgroundMessage))
	tb.SubscribeNotificationArrived(recorder[eventbus.NotificationArrivedPayload](tb, eventbus.EventNotificationArrived))
	tb.SubscribeNotificationClicked(recorder[eventbus.NotificationClickedPayload](tb, eventbus.EventNotificationClicked))
	tb.SubscribeNotificationShown(recorder[eventbus.NotificationShownPayload](tb, eventbus.EventNotificationShown))
	tb.SubscribePollCompleted(recorder[eventbus.PollCompletedPayload](tb, eventbus.EventPollCompleted))
	tb.SubscribeSettingsChanged(recorder[eventbus.SettingsChangedPayload](tb, eventbus.EventSettingsChanged))
	tb.SubscribeUnreadChanged(recorder[eventbus.UnreadChangedPayload](tb, eventbus.EventUnreadChanged))

	ctx, cancel := context.WithCancel(context.Background())
	go tb.Start(ctx)
	t.Cleanup(cancel)

	return tb
}

func recorder[P any](tb *Bus, event eventbus.Event) func(P) {
	return func(p P) {
		tb.mu.Lock()
		tb.events = append(tb.events, RecordedEvent{Event: event, Payload: p})
		close(tb.changed)
		tb.changed = make(chan struct{})
		tb.mu.Unlock()
	}
}

// Events returns the deliveries so far, oldest first.
func (tb *Bus) Events() []RecordedEvent {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return slices.Clone(tb.events)
}

// Payloads returns the payloads delivered for event, oldest first.
func (tb *Bus) Payloads(event eventbus.Event) []any {
	var out []any
	for _, e := range tb.Events() {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (tb *Bus) Reset() {
	tb.mu.Lock()
	tb.events = nil
	tb.mu.Unlock()
}

// WaitFor reports whether event is delivered before timeout.
func (tb *Bus) WaitFor(event eventbus.Event, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		tb.mu.Lock()
		seen := slices.ContainsFunc(tb.events, func(e RecordedEvent) bool { return e.Event == event })
		wake := tb.changed
		tb.mu.Unlock()

		if seen {
			return true
		}
		select {
		case <-wake:
		case <-deadline.C:
			return false
		}
	}
}

// AssertPublished fails t unless event is delivered within 500ms.
func (tb *Bus) AssertPublished(t *testing.T, event eventbus.Event) {
	t.Helper()
	if !tb.WaitFor(event, 500*time.Millisecond) {
		t.Errorf("event %q was not delivered", event)
	}
}

// AssertNotPublished fails t if event is delivered within wait.
func (tb *Bus) AssertNotPublished(t *testing.T, event eventbus.Event, wait time.Duration) {
	t.Helper()
	if tb.WaitFor(event, wait) {
		t.Errorf("event %q was delivered", event)
	}
}
