package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/colonyops/cinq/internal/core/kv"
	"github.com/colonyops/cinq/internal/data/db"
)

// KVStore is the SQLite implementation of kv.KV. Settings, the unread count,
// the poll checkpoint, consent and the autopush registration all live here.
//
// Values are stored as JSON. Rows past their expiry read as missing and are
// deleted on the read that notices them.
type KVStore struct {
	db  *db.DB
	now func() time.Time
}

var _ kv.KV = (*KVStore)(nil)

func NewKVStore(db *db.DB) *KVStore {
	return &KVStore{db: db, now: time.Now}
}

// live loads key and reports sql.ErrNoRows for absent or expired rows.
func (s *KVStore) live(ctx context.Context, key string) (db.KvStore, error) {
	q := s.db.Queries()

	row, err := q.KVGet(ctx, key)
	if err != nil {
		return row, err
	}
	if row.ExpiresAt.Valid && row.ExpiresAt.Int64 < s.now().UnixNano() {
		_ = q.KVDelete(ctx, key)
		return db.KvStore{}, sql.ErrNoRows
	}
	return row, nil
}

func (s *KVStore) Get(ctx context.Context, key string, dest any) error {
	row, err := s.live(ctx, key)
	if err != nil {
		return fmt.Errorf("kv get %q: %w", key, err)
	}
	if err := json.Unmarshal(row.Value, dest); err != nil {
		return fmt.Errorf("kv get %q: decode: %w", key, err)
	}
	return nil
}

func (s *KVStore) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.live(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("kv has %q: %w", key, err)
	}
}

// GetRaw returns the stored JSON with its timestamps.
func (s *KVStore) GetRaw(ctx context.Context, key string) (kv.Entry, error) {
	row, err := s.live(ctx, key)
	if err != nil {
		return kv.Entry{}, fmt.Errorf("kv get raw %q: %w", key, err)
	}

	e := kv.Entry{
		Key:       row.Key,
		Value:     json.RawMessage(row.Value),
		CreatedAt: time.Unix(0, row.CreatedAt),
		UpdatedAt: time.Unix(0, row.UpdatedAt),
	}
	if row.ExpiresAt.Valid {
		at := time.Unix(0, row.ExpiresAt.Int64)
		e.ExpiresAt = &at
	}
	return e, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	return s.put(ctx, key, value, 0)
}

// SetTTL stores value until ttl has elapsed.
func (s *KVStore) SetTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.put(ctx, key, value, ttl)
}

func (s *KVStore) put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv set %q: encode: %w", key, err)
	}

	now := s.now()
	params := db.KVSetParams{
		Key:       key,
		Value:     data,
		CreatedAt: now.UnixNano(),
		UpdatedAt: now.UnixNano(),
	}
	if ttl > 0 {
		params.ExpiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixNano(), Valid: true}
	}

	if err := s.db.Queries().KVSet(ctx, params); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.db.Queries().KVDelete(ctx, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// DeletePrefix drops every key under prefix and returns the count removed.
func (s *KVStore) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, errors.New("kv delete prefix: empty prefix")
	}
	n, err := s.db.Queries().KVDeletePrefix(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("kv delete prefix %q: %w", prefix, err)
	}
	return n, nil
}

// ListKeys returns unexpired keys in sorted order.
func (s *KVStore) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := s.db.Queries().KVListKeys(ctx, s.cutoff())
	if err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}
	return keys, nil
}

// SweepExpired removes every row whose expiry has passed.
func (s *KVStore) SweepExpired(ctx context.Context) error {
	if err := s.db.Queries().KVSweepExpired(ctx, s.cutoff()); err != nil {
		return fmt.Errorf("kv sweep expired: %w", err)
	}
	return nil
}

func (s *KVStore) cutoff() sql.NullInt64 {
	return sql.NullInt64{Int64: s.now().UnixNano(), Valid: true}
}
