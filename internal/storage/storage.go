// Package storage is the local persistent key/value store behind the mock
// identity provider and the per-browser session slots. Values are JSON documents.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// ErrCorrupt wraps a stored value that no longer decodes.
var ErrCorrupt = errors.New("storage: corrupt value")

// Storage is a flat string keyed byte store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// GetJSON decodes the value at key into dst. It reports false when the key is absent.
func GetJSON(ctx context.Context, s Storage, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Storage, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

type scoped struct {
	inner  Storage
	prefix string
}

// Scoped returns a view of s where every key is prefixed.
func Scoped(s Storage, prefix string) Storage {
	if prefix == "" {
		return s
	}
	if sc, ok := s.(*scoped); ok {
		return &scoped{inner: sc.inner, prefix: sc.prefix + prefix}
	}
	return &scoped{inner: s, prefix: prefix}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *scoped) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Shared is the namespace holding the identity map and reset challenges.
func Shared(s Storage) Storage {
	return Scoped(s, "identity:")
}

// Device is the namespace of one browser context.
func Device(s Storage, deviceID string) Storage {
	return Scoped(s, "device:"+deviceID+":")
}
