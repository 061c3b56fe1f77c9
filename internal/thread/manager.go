// Package thread tracks per-thread participation state: which agents have
// spoken in a thread and in what order they first appeared.
package thread

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/store"
)

// State is the in-memory view of one thread. Never deleted; it grows with
// conversation history and is reconstructable from the transcript.
type State struct {
	ThreadID       string
	RoomID         string
	Participants   []string // first-appearance order, natives and invitees merged
	LastActivityAt time.Time
}

// Manager owns thread participation state. All reads copy data out under
// the lock; the lock is never held across store I/O.
type Manager struct {
	mu      sync.RWMutex
	threads map[string]*State
	store   store.ThreadStore
}

// NewManager creates a manager and loads persisted thread state.
func NewManager(ctx context.Context, ts store.ThreadStore) (*Manager, error) {
	m := &Manager{
		threads: make(map[string]*State),
		store:   ts,
	}
	if ts != nil {
		persisted, err := ts.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, th := range persisted {
			m.threads[th.ThreadID] = &State{
				ThreadID:       th.ThreadID,
				RoomID:         th.RoomID,
				Participants:   append([]string(nil), th.Participants...),
				LastActivityAt: th.LastActivityAt,
			}
		}
		slog.Info("loaded thread state", "threads", len(persisted))
	}
	return m, nil
}

// RecordParticipation marks an agent as having responded in a thread,
// appending it to the participation order on first appearance.
func (m *Manager) RecordParticipation(ctx context.Context, threadID, roomID, agent string) {
	now := time.Now()

	m.mu.Lock()
	st, ok := m.threads[threadID]
	if !ok {
		st = &State{ThreadID: threadID, RoomID: roomID}
		m.threads[threadID] = st
	}
	if !contains(st.Participants, agent) {
		st.Participants = append(st.Participants, agent)
	}
	st.LastActivityAt = now
	snapshot := store.ThreadData{
		ThreadID:       st.ThreadID,
		RoomID:         st.RoomID,
		Participants:   append([]string(nil), st.Participants...),
		LastActivityAt: st.LastActivityAt,
	}
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Upsert(ctx, snapshot); err != nil {
			slog.Warn("persist thread state failed", "thread", threadID, "error", err)
		}
	}
}

// Touch updates the thread's last-activity time without changing
// participation.
func (m *Manager) Touch(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.threads[threadID]; ok {
		st.LastActivityAt = time.Now()
	}
}

// Participants returns the thread's participant order as a copy.
// A nil slice means no agent has participated yet.
func (m *Manager) Participants(threadID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.threads[threadID]
	if !ok {
		return nil
	}
	return append([]string(nil), st.Participants...)
}

// Get returns a copy of the thread state, or false if unknown.
func (m *Manager) Get(threadID string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.threads[threadID]
	if !ok {
		return State{}, false
	}
	cp := *st
	cp.Participants = append([]string(nil), st.Participants...)
	return cp, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
