// Package track guarantees at-most-once dispatch per (agent, message),
// across the process lifetime and across restarts. The durable basis is a
// per-agent cursor over the monotonic message sequence, so storage stays
// bounded as history grows; a small in-memory recent-ids cache absorbs
// same-process duplicates without a durability round-trip.
package track

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/store"
)

// recentCap bounds the per-agent recent-ids cache.
const recentCap = 1024

type recentRing struct {
	ids   map[string]bool
	order []string
}

func (r *recentRing) add(id string) {
	if r.ids == nil {
		r.ids = make(map[string]bool)
	}
	r.ids[id] = true
	r.order = append(r.order, id)
	for len(r.order) > recentCap {
		delete(r.ids, r.order[0])
		r.order = r.order[1:]
	}
}

// Tracker is the dedup guard. It owns cursor state; all access goes
// through ShouldDispatch/MarkDispatched. The lock is never held across
// store I/O.
type Tracker struct {
	mu      sync.Mutex
	cursors map[string]store.Cursor
	recent  map[string]*recentRing
	store   store.CursorStore
}

// NewTracker creates a tracker and loads persisted cursors, so processing
// resumes strictly after each agent's last committed message.
func NewTracker(ctx context.Context, cs store.CursorStore) (*Tracker, error) {
	t := &Tracker{
		cursors: make(map[string]store.Cursor),
		recent:  make(map[string]*recentRing),
		store:   cs,
	}
	if cs != nil {
		persisted, err := cs.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cursors: %w", err)
		}
		for _, cur := range persisted {
			t.cursors[cur.AgentName] = cur
		}
		slog.Info("loaded dispatch cursors", "agents", len(persisted))
	}
	return t, nil
}

// ShouldDispatch reports whether the agent may handle the message. It
// returns true exactly once per (agent, message) pair: the first caller to
// get true atomically claims the message id in the recent cache, so
// concurrent retries and at-least-once redelivery collapse to no-ops.
func (t *Tracker) ShouldDispatch(agent string, msg bus.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.cursors[agent]; ok && msg.Seq <= cur.LastSeq {
		return false
	}
	ring, ok := t.recent[agent]
	if !ok {
		ring = &recentRing{}
		t.recent[agent] = ring
	}
	if ring.ids[msg.ID] {
		return false
	}
	ring.add(msg.ID)
	return true
}

// MarkDispatched durably commits the dispatch attempt. Callers commit
// BEFORE producing the externally visible reply (write-then-act): a crash
// between commit and send under-delivers once, which this system prefers
// to a duplicate visible reply.
func (t *Tracker) MarkDispatched(ctx context.Context, agent string, msg bus.Message) error {
	cur := store.Cursor{
		AgentName:     agent,
		LastSeq:       msg.Seq,
		LastMessageID: msg.ID,
		UpdatedAt:     time.Now(),
	}

	t.mu.Lock()
	if prev, ok := t.cursors[agent]; ok && prev.LastSeq > cur.LastSeq {
		// Never move the cursor backwards.
		cur = prev
	}
	t.cursors[agent] = cur
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	if err := t.store.Upsert(ctx, cur); err != nil {
		return fmt.Errorf("commit cursor for %s: %w", agent, err)
	}
	return nil
}

// MaxSeq returns the highest committed sequence across all agents.
// The bus counter is seeded from this at startup; without it a restarted
// process would hand out low sequence numbers that read as already
// handled against the persisted cursors.
func (t *Tracker) MaxSeq() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var max uint64
	for _, cur := range t.cursors {
		if cur.LastSeq > max {
			max = cur.LastSeq
		}
	}
	return max
}

// Cursor returns the agent's committed cursor, if any.
func (t *Tracker) Cursor(agent string) (store.Cursor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.cursors[agent]
	return cur, ok
}
