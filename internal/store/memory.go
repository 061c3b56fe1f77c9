package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStores is a non-durable backend used by tests and the `doctor`
// command. Mutations copy data in/out so callers never share state with
// the store's internal maps.
type MemoryStores struct {
	mu      sync.Mutex
	invites map[[2]string]Invitation // (thread_id, agent_name)
	cursors map[string]Cursor
	threads map[string]ThreadData
}

// NewMemoryStores creates an empty in-memory backend.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		invites: make(map[[2]string]Invitation),
		cursors: make(map[string]Cursor),
		threads: make(map[string]ThreadData),
	}
}

// Stores returns the store container backed by this instance.
func (m *MemoryStores) Stores() *Stores {
	return NewStores(
		(*memInvites)(m),
		(*memCursors)(m),
		(*memThreads)(m),
		nil,
	)
}

type memInvites MemoryStores

func (m *memInvites) Upsert(_ context.Context, inv Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invites[[2]string{inv.ThreadID, inv.AgentName}] = inv
	return nil
}

func (m *memInvites) Delete(_ context.Context, threadID, agent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.invites, [2]string{threadID, agent})
	return nil
}

func (m *memInvites) List(_ context.Context) ([]Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Invitation, 0, len(m.invites))
	for _, inv := range m.invites {
		out = append(out, inv)
	}
	return out, nil
}

func (m *memInvites) TouchActivity(_ context.Context, threadID, agent string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{threadID, agent}
	if inv, ok := m.invites[key]; ok {
		inv.LastActivityAt = at
		m.invites[key] = inv
	}
	return nil
}

type memCursors MemoryStores

func (m *memCursors) Upsert(_ context.Context, cur Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[cur.AgentName] = cur
	return nil
}

func (m *memCursors) List(_ context.Context) ([]Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Cursor, 0, len(m.cursors))
	for _, cur := range m.cursors {
		out = append(out, cur)
	}
	return out, nil
}

type memThreads MemoryStores

func (m *memThreads) Upsert(_ context.Context, th ThreadData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := th
	cp.Participants = append([]string(nil), th.Participants...)
	m.threads[th.ThreadID] = cp
	return nil
}

func (m *memThreads) List(_ context.Context) ([]ThreadData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ThreadData, 0, len(m.threads))
	for _, th := range m.threads {
		cp := th
		cp.Participants = append([]string(nil), th.Participants...)
		out = append(out, cp)
	}
	return out, nil
}
