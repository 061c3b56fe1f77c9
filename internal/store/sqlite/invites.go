package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/store"
)

type inviteStore struct {
	db *sql.DB
}

func (s *inviteStore) Upsert(ctx context.Context, inv store.Invitation) error {
	var expires interface{}
	if inv.ExpiresAt != nil {
		expires = inv.ExpiresAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invitations (thread_id, agent_name, room_id, invited_by, created_at, expires_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, agent_name) DO UPDATE SET
			room_id = excluded.room_id,
			invited_by = excluded.invited_by,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			last_activity_at = excluded.last_activity_at`,
		inv.ThreadID, inv.AgentName, inv.RoomID, inv.InvitedBy,
		inv.CreatedAt.UTC(), expires, inv.LastActivityAt.UTC())
	return err
}

func (s *inviteStore) Delete(ctx context.Context, threadID, agent string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE thread_id = ? AND agent_name = ?`, threadID, agent)
	return err
}

func (s *inviteStore) List(ctx context.Context) ([]store.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, agent_name, room_id, invited_by, created_at, expires_at, last_activity_at
		FROM invitations ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Invitation
	for rows.Next() {
		var inv store.Invitation
		var expires sql.NullTime
		if err := rows.Scan(&inv.ThreadID, &inv.AgentName, &inv.RoomID, &inv.InvitedBy,
			&inv.CreatedAt, &expires, &inv.LastActivityAt); err != nil {
			return nil, err
		}
		if expires.Valid {
			t := expires.Time
			inv.ExpiresAt = &t
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *inviteStore) TouchActivity(ctx context.Context, threadID, agent string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET last_activity_at = ? WHERE thread_id = ? AND agent_name = ?`,
		at.UTC(), threadID, agent)
	return err
}
