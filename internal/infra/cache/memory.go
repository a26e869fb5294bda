package cache

import (
	"context"
	"sync"
	"time"

	"github.com/saurav7sc/mayalens/internal/application"
	"github.com/saurav7sc/mayalens/internal/domain/reading"
)

// Memory is a bounded in-process TTL cache of accepted readings.
// Expired entries read as absent; Sweep reclaims them.
type Memory struct {
	mu         sync.Mutex
	items      map[string]reading.CachedAnalysis
	ttl        time.Duration
	maxEntries int
	clock      application.Clock
}

// NewMemory creates a cache. maxEntries <= 0 means unbounded.
func NewMemory(ttl time.Duration, maxEntries int, clock application.Clock) *Memory {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Memory{
		items:      make(map[string]reading.CachedAnalysis),
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      clock,
	}
}

// Get returns the entry for hash if present and younger than the TTL.
func (m *Memory) Get(hash string) (reading.CachedAnalysis, bool) {
	m.mu.Lock()
	entry, ok := m.items[hash]
	m.mu.Unlock()
	if !ok || m.expired(entry, m.clock.Now()) {
		return reading.CachedAnalysis{}, false
	}
	return entry, true
}

// Set stores entry under its content hash, evicting the oldest entry when full.
func (m *Memory) Set(entry reading.CachedAnalysis) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.clock.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[entry.ContentHash]; !exists && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		m.sweepLocked(m.clock.Now())
		if len(m.items) >= m.maxEntries {
			m.evictOldestLocked()
		}
	}
	m.items[entry.ContentHash] = entry
}

// Len returns the number of stored entries, expired ones included until swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Sweep removes expired entries and returns how many were dropped.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.clock.Now())
}

// Run sweeps every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Memory) expired(entry reading.CachedAnalysis, now time.Time) bool {
	return now.Sub(entry.CreatedAt) >= m.ttl
}

func (m *Memory) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range m.items {
		if m.expired(e, now) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

func (m *Memory) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range m.items {
		if oldestKey == "" || e.CreatedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(m.items, oldestKey)
	}
}
