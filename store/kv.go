// Package store persists profiles and domain mappings on a key-value backend.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrQuotaExceeded  = errors.New("storage quota exceeded")
	ErrInvalidProfile = errors.New("invalid profile")
)

// KV is the storage backend: list, get, set and delete by key.
// Writes to one key are atomic; nothing spans keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// MemoryKV keeps values in process memory, bounded by a byte quota.
type MemoryKV struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
	used  int
}

// NewMemoryKV returns an empty store. A quota of zero or less means unbounded.
func NewMemoryKV(quota int) *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte), quota: quota}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.used + entrySize(key, value)
	if old, exists := m.data[key]; exists {
		used -= entrySize(key, old)
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = append([]byte(nil), value...)
	m.used = used
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		m.used -= entrySize(key, v)
		delete(m.data, key)
	}
	return nil
}

func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryKV) Close() error { return nil }

func entrySize(key string, value []byte) int {
	return len(key) + len(value)
}
