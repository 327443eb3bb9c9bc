// Package assetcache keeps a versioned copy of the web UI's static assets so
// the app shell keeps loading when the origin is unavailable.
package assetcache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrMiss indicates the key is not cached.
var ErrMiss = errors.New("asset cache miss")

// ErrNotFound is returned by Fetch when neither the cache, the origin nor the
// app shell fallback can serve a path.
var ErrNotFound = errors.New("asset not found")

// Asset is one cached response body.
type Asset struct {
	ContentType string
	Data        []byte
}

// Store is the backing key/value store for cached assets.
type Store interface {
	Get(ctx context.Context, key string) (Asset, error)
	Put(ctx context.Context, key string, asset Asset) error
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Asset
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Asset)}
}

// Get retrieves an asset.
func (s *MemoryStore) Get(ctx context.Context, key string) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data[key]
	if !ok {
		return Asset{}, ErrMiss
	}
	return a, nil
}

// Put stores a copy of asset.
func (s *MemoryStore) Put(ctx context.Context, key string, asset Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset.Data = append([]byte(nil), asset.Data...)
	s.data[key] = asset
	return nil
}

// Keys lists every key, sorted.
func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes keys; unknown keys are ignored.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// cacheKey joins a cache name and an asset path.
func cacheKey(name, path string) string {
	return name + ":" + path
}

// cacheName returns the cache name part of a key.
func cacheName(key string) string {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[:i]
	}
	return key
}
