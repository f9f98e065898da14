// Package idempotence remembers keys that were already processed, such as
// Telegram update ids, so a redelivered update is handled once.
package idempotence

import (
	"context"
	"sync"
	"time"
)

// Recorder reports first=true the first time it sees key.
type Recorder interface {
	MakeRecord(ctx context.Context, key string) (first bool, err error)
	// Purge forgets keys recorded before the cutoff.
	Purge(ctx context.Context, before time.Time) (int, error)
}

// Memory keeps keys in process for at most ttl.
type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemory returns a Memory recorder. A non-positive ttl keeps keys until Purge.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (m *Memory) MakeRecord(_ context.Context, key string) (bool, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if at, ok := m.seen[key]; ok && (m.ttl <= 0 || now.Sub(at) < m.ttl) {
		return false, nil
	}
	m.seen[key] = now
	return true, nil
}

func (m *Memory) Purge(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, at := range m.seen {
		if at.Before(before) {
			delete(m.seen, k)
			n++
		}
	}
	return n, nil
}

// Len reports how many keys are held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
