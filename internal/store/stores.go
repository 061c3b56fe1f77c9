package store

import (
	"context"
	"time"
)

// Invitation is a temporary per-thread access grant for one agent.
// Keyed by (thread_id, agent_name); absence means "not invited".
type Invitation struct {
	AgentName      string     `json:"agent_name"`
	ThreadID       string     `json:"thread_id"`
	RoomID         string     `json:"room_id"`
	InvitedBy      string     `json:"invited_by"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"` // nil = no expiry
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// Expired reports whether the invitation's expiry has passed at the given time.
func (inv Invitation) Expired(now time.Time) bool {
	return inv.ExpiresAt != nil && !inv.ExpiresAt.After(now)
}

// Cursor is the durable per-agent dispatch position. Messages at or below
// LastSeq are never re-evaluated for the agent after a restart.
type Cursor struct {
	AgentName     string    `json:"agent_name"`
	LastSeq       uint64    `json:"last_seq"`
	LastMessageID string    `json:"last_message_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ThreadData is the persisted participation state of one thread.
// Participants are in first-appearance order, natives and invitees merged.
type ThreadData struct {
	ThreadID       string    `json:"thread_id"`
	RoomID         string    `json:"room_id"`
	Participants   []string  `json:"participants"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// InviteStore persists invitations. All mutations are single-row atomic
// operations so an interrupted shutdown never leaves partial state.
type InviteStore interface {
	Upsert(ctx context.Context, inv Invitation) error
	Delete(ctx context.Context, threadID, agent string) error
	List(ctx context.Context) ([]Invitation, error)
	TouchActivity(ctx context.Context, threadID, agent string, at time.Time) error
}

// CursorStore persists per-agent dispatch cursors.
type CursorStore interface {
	Upsert(ctx context.Context, cur Cursor) error
	List(ctx context.Context) ([]Cursor, error)
}

// ThreadStore persists thread participation state.
type ThreadStore interface {
	Upsert(ctx context.Context, th ThreadData) error
	List(ctx context.Context) ([]ThreadData, error)
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Invites InviteStore
	Cursors CursorStore
	Threads ThreadStore

	closer func() error
}

// NewStores bundles backend implementations with a close function.
func NewStores(invites InviteStore, cursors CursorStore, threads ThreadStore, closer func() error) *Stores {
	return &Stores{Invites: invites, Cursors: cursors, Threads: threads, closer: closer}
}

// Close releases the underlying backend.
func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Config selects and configures a storage backend.
type Config struct {
	Backend     string // "sqlite" (standalone) or "postgres" (managed)
	SQLitePath  string
	PostgresDSN string
}
