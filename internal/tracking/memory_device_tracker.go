package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize = 10000
	DefaultTTL  = 5 * time.Minute
)

// MemoryDeviceTracker keeps records in a process-local LRU bounded by both
// entry count and age.
type MemoryDeviceTracker struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, DeviceWriteRecord]
}

func NewMemoryDeviceTracker(size int, ttl time.Duration) *MemoryDeviceTracker {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryDeviceTracker{
		lru: expirable.NewLRU[string, DeviceWriteRecord](size, nil, ttl),
	}
}

func (m *MemoryDeviceTracker) Lookup(_ context.Context, taskID string) (DeviceWriteRecord, bool, error) {
	record, ok := m.lru.Get(taskID)
	return record, ok, nil
}

// Record keeps the entry with the highest version. A record that arrives
// late for an older version is dropped.
func (m *MemoryDeviceTracker) Record(_ context.Context, taskID string, record DeviceWriteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stored, ok := m.lru.Peek(taskID); ok && stored.Version >= record.Version {
		return nil
	}
	m.lru.Add(taskID, record)
	return nil
}

func (m *MemoryDeviceTracker) Forget(_ context.Context, taskID string) error {
	m.lru.Remove(taskID)
	return nil
}

func (m *MemoryDeviceTracker) Len() int {
	return m.lru.Len()
}
