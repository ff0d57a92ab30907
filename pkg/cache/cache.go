// Package cache stores small byte payloads with a time to live, in process or in Redis.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is implemented by Memory and Redis
type Cache interface {
	// Get reports a miss with ok=false and a nil error
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type item struct {
	value      []byte
	expiration int64
}

func (i item) expired(now int64) bool {
	return i.expiration > 0 && now > i.expiration
}

// Memory is a thread-safe in-process cache. Expired entries are dropped lazily
// on read and periodically by a janitor goroutine.
type Memory struct {
	mu       sync.RWMutex
	items    map[string]item
	maxItems int
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a cache holding at most maxItems entries (0 for no limit).
// A positive cleanupInterval starts the janitor; call Close to stop it.
func NewMemory(maxItems int, cleanupInterval time.Duration) *Memory {
	m := &Memory{
		items:    make(map[string]item),
		maxItems: maxItems,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.janitor(cleanupInterval)
	}
	return m
}

// Get returns a copy of the cached value
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, found := m.items[key]
	if !found || it.expired(m.now().UnixNano()) {
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

// Set stores value; ttl <= 0 never expires
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = m.now().Add(ttl).UnixNano()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; !exists && m.maxItems > 0 && len(m.items) >= m.maxItems {
		m.evictSoonestLocked()
	}
	m.items[key] = item{value: append([]byte(nil), value...), expiration: exp}
	return nil
}

// Delete removes key
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Len counts entries, expired ones included
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the janitor
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.deleteExpired()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UnixNano()
	for k, v := range m.items {
		if v.expired(now) {
			delete(m.items, k)
		}
	}
}

// evictSoonestLocked drops the entry closest to expiry; entries without a TTL go last
func (m *Memory) evictSoonestLocked() {
	var victim string
	var soonest int64
	for k, v := range m.items {
		switch {
		case victim == "":
			victim, soonest = k, v.expiration
		case v.expiration > 0 && (soonest == 0 || v.expiration < soonest):
			victim, soonest = k, v.expiration
		}
	}
	delete(m.items, victim)
}
