package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the prepared statements used by the stores.
type Queries struct {
	db DBTX
}

// New binds queries to a connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const kvGet = `SELECT key, value, expires_at, created_at, updated_at FROM kv_store WHERE key = ?`

func (q *Queries) KVGet(ctx context.Context, key string) (KvStore, error) {
	var r KvStore
	err := q.db.QueryRowContext(ctx, kvGet, key).Scan(&r.Key, &r.Value, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const kvSet = `
INSERT INTO kv_store (key, value, expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    value      = excluded.value,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at`

type KVSetParams struct {
	Key       string
	Value     []byte
	ExpiresAt sql.NullInt64
	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) KVSet(ctx context.Context, arg KVSetParams) error {
	_, err := q.db.ExecContext(ctx, kvSet, arg.Key, arg.Value, arg.ExpiresAt, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const kvDelete = `DELETE FROM kv_store WHERE key = ?`

func (q *Queries) KVDelete(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, kvDelete, key)
	return err
}

const kvListKeys = `SELECT key FROM kv_store WHERE expires_at IS NULL OR expires_at >= ? ORDER BY key`

func (q *Queries) KVListKeys(ctx context.Context, now sql.NullInt64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, kvListKeys, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

const kvSweepExpired = `DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at < ?`

func (q *Queries) KVSweepExpired(ctx context.Context, now sql.NullInt64) error {
	_, err := q.db.ExecContext(ctx, kvSweepExpired, now)
	return err
}

const insertNotification = `
INSERT INTO notifications (id, title, body, type, url, avatar, created_at, read)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET read = excluded.read`

type InsertNotificationParams struct {
	ID        string
	Title     string
	Body      string
	Type      string
	URL       string
	Avatar    string
	CreatedAt int64
	Read      bool
}

func (q *Queries) InsertNotification(ctx context.Context, arg InsertNotificationParams) error {
	_, err := q.db.ExecContext(ctx, insertNotification,
		arg.ID, arg.Title, arg.Body, arg.Type, arg.URL, arg.Avatar, arg.CreatedAt, arg.Read)
	return err
}

const listNotifications = `
SELECT id, title, body, type, url, avatar, created_at, read
FROM notifications
ORDER BY created_at DESC, id DESC
LIMIT ?`

func (q *Queries) ListNotifications(ctx context.Context, limit int64) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.Type, &n.URL, &n.Avatar, &n.CreatedAt, &n.Read); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

const markNotificationRead = `UPDATE notifications SET read = 1 WHERE id = ? AND read = 0`

func (q *Queries) MarkNotificationRead(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markNotificationRead, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markAllNotificationsRead = `UPDATE notifications SET read = 1 WHERE read = 0`

func (q *Queries) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, markAllNotificationsRead)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const trimNotifications = `
DELETE FROM notifications
WHERE id NOT IN (
    SELECT id FROM notifications ORDER BY created_at DESC, id DESC LIMIT ?
)`

func (q *Queries) TrimNotifications(ctx context.Context, keep int64) error {
	_, err := q.db.ExecContext(ctx, trimNotifications, keep)
	return err
}

const deleteAllNotifications = `DELETE FROM notifications`

func (q *Queries) DeleteAllNotifications(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllNotifications)
	return err
}

const countNotifications = `SELECT COUNT(*) FROM notifications`

func (q *Queries) CountNotifications(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countNotifications).Scan(&n)
	return n, err
}

const kvDeletePrefix = `DELETE FROM kv_store WHERE substr(key, 1, length(?)) = ?`

func (q *Queries) KVDeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := q.db.ExecContext(ctx, kvDeletePrefix, prefix, prefix)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
