// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within cinq. A single dispatch goroutine
// delivers events in publication order, which makes the bus the ordered
// inbox shared by the poll and push producers.
package eventbus

import (
	"time"

	"github.com/colonyops/cinq/internal/core/notify"
)

// Events defines all event types and their payload structs.
var Events = map[string]any{
	// Keep list sorted A-Z
	"background.message":   BackgroundMessagePayload{},
	"notification.arrived": NotificationArrivedPayload{},
	"notification.clicked": NotificationClickedPayload{},
	"notification.shown":   NotificationShownPayload{},
	"poll.completed":       PollCompletedPayload{},
	"settings.changed":     SettingsChangedPayload{},
	"unread.changed":       UnreadChangedPayload{},
}

// Source identifies which producer delivered a notification.
type Source string

const (
	SourcePoll       Source = "poll"
	SourcePush       Source = "push"
	SourceBackground Source = "background"
)

// NotificationArrivedPayload is emitted when a producer learns about new
// messages. Item is nil when only a count is known. ServerCount is the
// server-reported unread count, zero when the producer does not know it.
type NotificationArrivedPayload struct {
	Item        *notify.Item
	Source      Source
	ServerCount int
}

// NotificationShownPayload is emitted after the center accepted an item.
type NotificationShownPayload struct {
	Item notify.Item
}

// NotificationClickedPayload is emitted when a notification asks for navigation.
type NotificationClickedPayload struct {
	URL string
}

// Background message types delivered by the push platform.
const (
	MessageNotificationClicked = "NOTIFICATION_CLICKED"
	MessageNewMessage          = "NEW_MESSAGE"
)

// BackgroundMessagePayload carries a raw message from the push platform.
type BackgroundMessagePayload struct {
	Type string
	Data map[string]any
}

// PollCompletedPayload is emitted after every poll cycle, successful or not.
type PollCompletedPayload struct {
	NewCount   int
	Err        error
	Skipped    bool
	Multiplier int
	Interval   time.Duration
}

// SettingsChangedPayload is emitted after settings are persisted.
type SettingsChangedPayload struct {
	Old notify.Settings
	New notify.Settings
}

// UnreadChangedPayload is emitted whenever the unread count changes.
type UnreadChangedPayload struct {
	Count int
}
