package eventbus

import (
	"context"
	"slices"
	"sync"
)

// hookList is a copy-on-read list of observer callbacks.
type hookList[F any] struct {
	mu  sync.RWMutex
	fns []F
}

func (h *hookList[F]) add(fn F) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// snapshot lets callbacks register further hooks without deadlocking.
func (h *hookList[F]) snapshot() []F {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.fns)
}

type hooks struct {
	publish   hookList[func(Event, any)]
	drop      hookList[func(Event, any)]
	subscribe hookList[func(Event)]
	panics    hookList[func(Event, any, any)]
}

// OnPublish is called after an event enters the queue.
func (bus *EventBus) OnPublish(fn func(Event, any)) { bus.hooks.publish.add(fn) }

// OnDrop is called when an event is discarded because the queue is full or
// the publisher gave up waiting.
func (bus *EventBus) OnDrop(fn func(Event, any)) { bus.hooks.drop.add(fn) }

func (bus *EventBus) OnSubscribe(fn func(Event)) { bus.hooks.subscribe.add(fn) }

// OnPanic is called with the recovered value when a subscriber panics.
// A panicking hook is itself recovered.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) { bus.hooks.panics.add(fn) }

// send enqueues without blocking.
func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
		bus.published(event, payload)
	default:
		bus.dropped(event, payload)
	}
}

// sendWait blocks for queue space until ctx ends. Calling it from a
// subscriber can deadlock the dispatch loop.
func (bus *EventBus) sendWait(ctx context.Context, event Event, payload any) error {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
		bus.published(event, payload)
		return nil
	case <-ctx.Done():
		bus.dropped(event, payload)
		return ctx.Err()
	}
}

func (bus *EventBus) published(event Event, payload any) {
	for _, fn := range bus.hooks.publish.snapshot() {
		fn(event, payload)
	}
}

func (bus *EventBus) dropped(event Event, payload any) {
	for _, fn := range bus.hooks.drop.snapshot() {
		fn(event, payload)
	}
}

func (bus *EventBus) subscribed(event Event) {
	for _, fn := range bus.hooks.subscribe.snapshot() {
		fn(event)
	}
}

func (bus *EventBus) panicked(event Event, payload, recovered any) {
	for _, fn := range bus.hooks.panics.snapshot() {
		func() {
			defer func() { _ = recover() }()
			fn(event, payload, recovered)
		}()
	}
}
