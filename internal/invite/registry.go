// Package invite owns temporary per-thread access grants. The Registry is
// the single owner of invitation state; the Sweeper periodically removes
// expired grants through the Registry's mutation path.
package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/store"
)

var (
	// ErrUnknownAgent is returned when the invited agent is not in the roster.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrNotThread is returned when the target is not a thread context.
	ErrNotThread = errors.New("invites are only valid inside a thread")
)

type inviteKey struct {
	threadID string
	agent    string
}

// Registry holds invitation state behind a mutex scoped to its internal
// map. The lock is never held across store I/O: mutations update the map,
// copy the record out, release, then persist (single-row atomic upserts).
type Registry struct {
	mu      sync.RWMutex
	invites map[inviteKey]store.Invitation
	store   store.InviteStore
	known   func(agent string) bool
	now     func() time.Time
}

// NewRegistry creates a registry and loads persisted invitations.
// known reports whether an agent name exists in the roster.
func NewRegistry(ctx context.Context, is store.InviteStore, known func(string) bool) (*Registry, error) {
	r := &Registry{
		invites: make(map[inviteKey]store.Invitation),
		store:   is,
		known:   known,
		now:     time.Now,
	}
	if is != nil {
		persisted, err := is.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("load invitations: %w", err)
		}
		for _, inv := range persisted {
			r.invites[inviteKey{inv.ThreadID, inv.AgentName}] = inv
		}
		slog.Info("loaded invitations", "count", len(persisted))
	}
	return r, nil
}

// Invite grants an agent access to a thread, optionally expiring after
// duration. Re-inviting an already-invited agent refreshes created_at and
// expires_at.
func (r *Registry) Invite(ctx context.Context, agent, threadID, roomID, invitedBy string, duration *time.Duration) (store.Invitation, error) {
	if threadID == "" {
		return store.Invitation{}, ErrNotThread
	}
	if r.known != nil && !r.known(agent) {
		return store.Invitation{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agent)
	}

	now := r.now()
	inv := store.Invitation{
		AgentName:      agent,
		ThreadID:       threadID,
		RoomID:         roomID,
		InvitedBy:      invitedBy,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if duration != nil {
		exp := now.Add(*duration)
		inv.ExpiresAt = &exp
	}

	key := inviteKey{threadID, agent}
	r.mu.Lock()
	prev, hadPrev := r.invites[key]
	r.invites[key] = inv
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Upsert(ctx, inv); err != nil {
			// The user is told the invite failed, so the in-memory grant
			// must not outlive the reply.
			r.mu.Lock()
			if hadPrev {
				r.invites[key] = prev
			} else {
				delete(r.invites, key)
			}
			r.mu.Unlock()
			return store.Invitation{}, fmt.Errorf("persist invitation: %w", err)
		}
	}
	return inv, nil
}

// Uninvite removes an invitation, reporting whether one existed.
// Not-found is a no-op, never an error.
func (r *Registry) Uninvite(ctx context.Context, agent, threadID string) bool {
	key := inviteKey{threadID, agent}

	r.mu.Lock()
	_, existed := r.invites[key]
	delete(r.invites, key)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, threadID, agent); err != nil {
			slog.Warn("delete invitation failed", "thread", threadID, "agent", agent, "error", err)
		}
	}
	return existed
}

// removeIfDefunct deletes the invitation only if it is still expired or
// stale at deletion time. The sweeper selects candidates from a snapshot;
// a grant refreshed between snapshot and removal must survive.
func (r *Registry) removeIfDefunct(ctx context.Context, agent, threadID string, staleAfter time.Duration) bool {
	key := inviteKey{threadID, agent}
	now := r.now()

	r.mu.Lock()
	inv, ok := r.invites[key]
	if !ok {
		r.mu.Unlock()
		return false
	}
	expired := inv.Expired(now)
	stale := staleAfter > 0 && now.Sub(inv.LastActivityAt) >= staleAfter
	if !expired && !stale {
		r.mu.Unlock()
		return false
	}
	delete(r.invites, key)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, threadID, agent); err != nil {
			slog.Warn("delete invitation failed", "thread", threadID, "agent", agent, "error", err)
		}
	}
	return true
}

// IsInvited reports whether the agent holds an active invitation for the
// thread. Fail-closed: an expired-but-not-yet-swept record is not invited,
// independent of sweep timing.
func (r *Registry) IsInvited(agent, threadID string) bool {
	r.mu.RLock()
	inv, ok := r.invites[inviteKey{threadID, agent}]
	r.mu.RUnlock()
	return ok && !inv.Expired(r.now())
}

// ListInvites returns a snapshot of the thread's invitations in creation
// order. Callers own the returned slice.
func (r *Registry) ListInvites(threadID string) []store.Invitation {
	r.mu.RLock()
	var out []store.Invitation
	for key, inv := range r.invites {
		if key.threadID == threadID {
			out = append(out, inv)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ActiveAgents returns agents holding non-expired invitations for the
// thread, in invitation order.
func (r *Registry) ActiveAgents(threadID string) []string {
	now := r.now()
	var out []string
	for _, inv := range r.ListInvites(threadID) {
		if !inv.Expired(now) {
			out = append(out, inv.AgentName)
		}
	}
	return out
}

// TouchActivity updates an invitation's last-activity time. Best-effort:
// persistence happens off the caller's path and failures only log.
func (r *Registry) TouchActivity(agent, threadID string) {
	key := inviteKey{threadID, agent}
	now := r.now()

	r.mu.Lock()
	inv, ok := r.invites[key]
	if ok {
		inv.LastActivityAt = now
		r.invites[key] = inv
	}
	r.mu.Unlock()

	if !ok || r.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.TouchActivity(ctx, threadID, agent, now); err != nil {
			slog.Debug("touch invitation activity failed", "thread", threadID, "agent", agent, "error", err)
		}
	}()
}

// snapshot returns all invitations. Used by the sweeper.
func (r *Registry) snapshot() []store.Invitation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]store.Invitation, 0, len(r.invites))
	for _, inv := range r.invites {
		out = append(out, inv)
	}
	return out
}
