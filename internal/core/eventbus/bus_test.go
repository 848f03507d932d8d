package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/cinq/internal/core/eventbus"
	"github.com/colonyops/cinq/internal/core/eventbus/testbus"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_DeliversInPublicationOrder(t *testing.T) {
	tb := testbus.New(t)
	ctx := context.Background()

	require.NoError(t, tb.PublishNotificationArrived(ctx, eventbus.NotificationArrivedPayload{
		Item: &notify.Item{Title: "first"}, Source: eventbus.SourcePoll,
	}))
	require.NoError(t, tb.PublishNotificationArrived(ctx, eventbus.NotificationArrivedPayload{
		Item: &notify.Item{Title: "second"}, Source: eventbus.SourcePush,
	}))
	tb.PublishUnreadChanged(eventbus.UnreadChangedPayload{Count: 2})

	tb.AssertPublished(t, eventbus.EventUnreadChanged)

	arrivals := tb.Payloads(eventbus.EventNotificationArrived)
	require.Len(t, arrivals, 2)
	assert.Equal(t, "first", arrivals[0].(eventbus.NotificationArrivedPayload).Item.Title)
	assert.Equal(t, "second", arrivals[1].(eventbus.NotificationArrivedPayload).Item.Title)
}

func TestEventBus_SubscriberPanicIsolated(t *testing.T) {
	tb := testbus.New(t)

	var mu sync.Mutex
	var panics []eventbus.Event
	tb.OnPanic(func(e eventbus.Event, _ any, _ any) {
		mu.Lock()
		panics = append(panics, e)
		mu.Unlock()
	})
	tb.SubscribeSettingsChanged(func(eventbus.SettingsChangedPayload) {
		panic("boom")
	})

	tb.PublishSettingsChanged(eventbus.SettingsChangedPayload{})
	tb.PublishUnreadChanged(eventbus.UnreadChangedPayload{Count: 1})

	tb.AssertPublished(t, eventbus.EventUnreadChanged)
	tb.AssertPublished(t, eventbus.EventSettingsChanged)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []eventbus.Event{eventbus.EventSettingsChanged}, panics)
}

func TestEventBus_DropWhenFull(t *testing.T) {
	bus := eventbus.New(1)

	var dropped []eventbus.Event
	bus.OnDrop(func(e eventbus.Event, _ any) { dropped = append(dropped, e) })

	// Not started: the first event fills the buffer, the second is dropped.
	bus.PublishUnreadChanged(eventbus.UnreadChangedPayload{Count: 1})
	bus.PublishUnreadChanged(eventbus.UnreadChangedPayload{Count: 2})

	assert.Equal(t, []eventbus.Event{eventbus.EventUnreadChanged}, dropped)
}

func TestEventBus_ArrivalWaitsForSpace(t *testing.T) {
	bus := eventbus.New(1)
	bus.PublishUnreadChanged(eventbus.UnreadChangedPayload{Count: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := bus.PublishNotificationArrived(ctx, eventbus.NotificationArrivedPayload{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go bus.Start(runCtx)

	require.NoError(t, bus.PublishNotificationArrived(context.Background(), eventbus.NotificationArrivedPayload{}))
}
