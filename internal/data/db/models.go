package db

import "database/sql"

// KvStore is a row of the kv_store table.
type KvStore struct {
	Key       string
	Value     []byte
	ExpiresAt sql.NullInt64
	CreatedAt int64
	UpdatedAt int64
}

// Notification is a row of the notifications table.
type Notification struct {
	ID        string
	Title     string
	Body      string
	Type      string
	URL       string
	Avatar    string
	CreatedAt int64
	Read      bool
}
