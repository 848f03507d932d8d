package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/data/db"
)

// NotifyStore implements notify.Store using SQLite.
type NotifyStore struct {
	db *db.DB
}

var _ notify.Store = (*NotifyStore)(nil)

// NewNotifyStore creates a new SQLite-backed notification store.
func NewNotifyStore(db *db.DB) *NotifyStore {
	return &NotifyStore{db: db}
}

// Save inserts an item. Saving an existing ID only updates its read flag.
func (s *NotifyStore) Save(ctx context.Context, item notify.Item) error {
	err := s.db.Queries().InsertNotification(ctx, db.InsertNotificationParams{
		ID:        item.ID,
		Title:     item.Title,
		Body:      item.Body,
		Type:      string(item.Type),
		URL:       item.URL,
		Avatar:    item.Avatar,
		CreatedAt: item.Timestamp.UnixNano(),
		Read:      item.Read,
	})
	if err != nil {
		return fmt.Errorf("insert notification %q: %w", item.ID, err)
	}
	return nil
}

// List returns up to limit items, newest first.
func (s *NotifyStore) List(ctx context.Context, limit int) ([]notify.Item, error) {
	rows, err := s.db.Queries().ListNotifications(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	result := make([]notify.Item, 0, len(rows))
	for _, row := range rows {
		result = append(result, rowToItem(row))
	}

	return result, nil
}

// MarkRead flags an unread item as read. It reports false when the item is
// missing or already read.
func (s *NotifyStore) MarkRead(ctx context.Context, id string) (bool, error) {
	n, err := s.db.Queries().MarkNotificationRead(ctx, id)
	if err != nil {
		return false, fmt.Errorf("mark notification %q read: %w", id, err)
	}
	return n > 0, nil
}

// MarkAllRead flags every item as read and returns how many changed.
func (s *NotifyStore) MarkAllRead(ctx context.Context) (int64, error) {
	n, err := s.db.Queries().MarkAllNotificationsRead(ctx)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

// Trim drops everything except the keep newest items.
func (s *NotifyStore) Trim(ctx context.Context, keep int) error {
	if err := s.db.Queries().TrimNotifications(ctx, int64(keep)); err != nil {
		return fmt.Errorf("trim notifications: %w", err)
	}
	return nil
}

// Clear deletes all notifications.
func (s *NotifyStore) Clear(ctx context.Context) error {
	if err := s.db.Queries().DeleteAllNotifications(ctx); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}

// Count returns the total number of notifications.
func (s *NotifyStore) Count(ctx context.Context) (int64, error) {
	count, err := s.db.Queries().CountNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

func rowToItem(row db.Notification) notify.Item {
	return notify.Item{
		ID:        row.ID,
		Title:     row.Title,
		Body:      row.Body,
		Type:      notify.Type(row.Type),
		URL:       row.URL,
		Avatar:    row.Avatar,
		Timestamp: time.Unix(0, row.CreatedAt),
		Read:      row.Read,
	}
}
