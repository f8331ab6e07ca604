package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// record is one client's current window.
type record struct {
	start time.Time
	count int
}

// MemoryStore keeps windows in process memory. Each instance enforces its own
// budget; it is not shared between processes.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record

	// sweepOdds is the 1-in-n chance that a Hit also drops expired records.
	sweepOdds int
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*record),
		sweepOdds: 100,
	}
}

// Hit implements Store.
func (m *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sweepOdds > 0 && rand.IntN(m.sweepOdds) == 0 {
		m.sweep(now, window)
	}

	r, ok := m.records[key]
	if !ok || !now.Before(r.start.Add(window)) {
		r = &record{start: now}
		m.records[key] = r
	}
	r.count++

	return r.count, r.start.Add(window), nil
}

// Sweep drops every record whose window ended before now.
func (m *MemoryStore) Sweep(now time.Time, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now, window)
}

func (m *MemoryStore) sweep(now time.Time, window time.Duration) {
	for key, r := range m.records {
		if !now.Before(r.start.Add(window)) {
			delete(m.records, key)
		}
	}
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
