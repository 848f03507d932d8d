// Package kvtest provides an in-memory kv.KV for tests that do not need SQLite.
package kvtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/colonyops/cinq/internal/core/kv"
)

// Memory is a map-backed kv.KV. Values round-trip through JSON so tests see
// the same serialization behavior as the SQLite store.
type Memory struct {
	mu      sync.Mutex
	entries map[string]kv.Entry
	// FailSet makes Set return this error when non-nil.
	FailSet error
}

var _ kv.KV = (*Memory)(nil)

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{entries: make(map[string]kv.Entry)}
}

func (m *Memory) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	e, ok := m.live(key)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("kv get %q: %w", key, sql.ErrNoRows)
	}
	return json.Unmarshal(e.Value, dest)
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	return m.put(key, value, nil)
}

func (m *Memory) SetTTL(_ context.Context, key string, value any, ttl time.Duration) error {
	exp := time.Now().Add(ttl)
	return m.put(key, value, &exp)
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *Memory) ListKeys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if _, ok := m.live(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) GetRaw(_ context.Context, key string) (kv.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return kv.Entry{}, fmt.Errorf("kv get raw %q: %w", key, sql.ErrNoRows)
	}
	return e, nil
}

// Raw returns the stored JSON for key, or nil.
func (m *Memory) Raw(key string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.live(key); ok {
		return e.Value
	}
	return nil
}

func (m *Memory) put(key string, value any, exp *time.Time) error {
	if m.FailSet != nil {
		return m.FailSet
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv set %q marshal: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	e, ok := m.entries[key]
	if !ok {
		e.CreatedAt = now
	}
	e.Key = key
	e.Value = data
	e.ExpiresAt = exp
	e.UpdatedAt = now
	m.entries[key] = e
	return nil
}

// live must be called with mu held.
func (m *Memory) live(key string) (kv.Entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return kv.Entry{}, false
	}
	if e.ExpiresAt != nil && e.ExpiresAt.Before(time.Now()) {
		delete(m.entries, key)
		return kv.Entry{}, false
	}
	return e, true
}
