package notify

import (
	"context"
	"time"
)

// Type classifies a notification item.
type Type string

const (
	TypeMessage Type = "message"
	TypePing    Type = "ping"
	TypeInfo    Type = "info"
)

// ParseType maps loose input to a Type, defaulting to TypeMessage.
func ParseType(s string) Type {
	switch Type(s) {
	case TypePing:
		return TypePing
	case TypeInfo:
		return TypeInfo
	default:
		return TypeMessage
	}
}

// Item is a single entry in the notification center.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      Type      `json:"type"`
	URL       string    `json:"url,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Store persists notification items. List returns newest first.
type Store interface {
	Save(ctx context.Context, item Item) error
	List(ctx context.Context, limit int) ([]Item, error)
	MarkRead(ctx context.Context, id string) (bool, error)
	MarkAllRead(ctx context.Context) (int64, error)
	Trim(ctx context.Context, keep int) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}
