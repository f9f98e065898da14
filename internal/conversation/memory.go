package conversation

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	conv      Conversation
	updatedAt time.Time
}

// Memory is an in-process Store. State is lost on restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[int64]memoryEntry
	now      func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[int64]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, userID int64) (Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[userID]
	if !ok {
		return nil, false, nil
	}
	return e.conv, true, nil
}

func (m *Memory) Put(_ context.Context, userID int64, c Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = memoryEntry{conv: c, updatedAt: m.now()}
	return nil
}

func (m *Memory) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *Memory) Expire(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.updatedAt.Before(before) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
