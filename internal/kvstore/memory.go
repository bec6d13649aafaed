package kvstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexushub/nexus/internal/errs"
)

// Memory is an in-process Store. It backs tests and ephemeral sessions and
// applies the same quota accounting as the durable backend.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int
	used  int
}

// NewMemory returns an empty in-memory store with the given byte quota.
// A non-positive quota falls back to DefaultQuota.
func NewMemory(quota int) *Memory {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &Memory{data: make(map[string]string), quota: quota}
}

// Set stores value under key, rejecting writes that would exceed the quota.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		next -= len(key) + len(old)
	}
	if next > m.quota {
		return fmt.Errorf("set %q: %w", key, errs.ErrStorageFull)
	}
	m.data[key] = value
	m.used = next
	return nil
}

// Get returns the value under key, or ok=false when absent.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Delete removes key if present.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}
