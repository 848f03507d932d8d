package kv

import (
	"context"
	"time"
)

// TypedKV reads and writes values of one type under a key namespace.
type TypedKV[T any] struct {
	store  KV
	prefix string
}

// Scoped namespaces every key as "namespace:key".
func Scoped[T any](store KV, namespace string) *TypedKV[T] {
	return &TypedKV[T]{store: store, prefix: namespace + ":"}
}

func (t *TypedKV[T]) key(k string) string { return t.prefix + k }

func (t *TypedKV[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	err := t.store.Get(ctx, t.key(key), &v)
	return v, err
}

// GetOr falls back only for absent keys. Decode and storage failures are
// returned with the fallback.
func (t *TypedKV[T]) GetOr(ctx context.Context, key string, fallback T) (T, error) {
	v, err := t.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if IsMissing(err) {
		err = nil
	}
	return fallback, err
}

func (t *TypedKV[T]) Set(ctx context.Context, key string, value T) error {
	return t.store.Set(ctx, t.key(key), value)
}

func (t *TypedKV[T]) SetTTL(ctx context.Context, key string, value T, ttl time.Duration) error {
	return t.store.SetTTL(ctx, t.key(key), value, ttl)
}

func (t *TypedKV[T]) Delete(ctx context.Context, key string) error {
	return t.store.Delete(ctx, t.key(key))
}

func (t *TypedKV[T]) Has(ctx context.Context, key string) (bool, error) {
	return t.store.Has(ctx, t.key(key))
}
