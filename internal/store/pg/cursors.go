package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/nextlevelbuilder/threadclaw/internal/store"
)

type cursorStore struct {
	db *sql.DB
}

func (s *cursorStore) Upsert(ctx context.Context, cur store.Cursor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (agent_name, last_seq, last_message_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_name) DO UPDATE SET
			last_seq = EXCLUDED.last_seq,
			last_message_id = EXCLUDED.last_message_id,
			updated_at = EXCLUDED.updated_at`,
		cur.AgentName, int64(cur.LastSeq), cur.LastMessageID, cur.UpdatedAt.UTC())
	return err
}

func (s *cursorStore) List(ctx context.Context) ([]store.Cursor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_name, last_seq, last_message_id, updated_at FROM cursors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Cursor
	for rows.Next() {
		var cur store.Cursor
		var seq int64
		if err := rows.Scan(&cur.AgentName, &seq, &cur.LastMessageID, &cur.UpdatedAt); err != nil {
			return nil, err
		}
		cur.LastSeq = uint64(seq)
		out = append(out, cur)
	}
	return out, rows.Err()
}

type threadStore struct {
	db *sql.DB
}

func (s *threadStore) Upsert(ctx context.Context, th store.ThreadData) error {
	participants, err := json.Marshal(th.Participants)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (thread_id, room_id, participants, last_activity_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (thread_id) DO UPDATE SET
			room_id = EXCLUDED.room_id,
			participants = EXCLUDED.participants,
			last_activity_at = EXCLUDED.last_activity_at`,
		th.ThreadID, th.RoomID, participants, th.LastActivityAt.UTC())
	return err
}

func (s *threadStore) List(ctx context.Context) ([]store.ThreadData, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, room_id, participants, last_activity_at FROM threads`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ThreadData
	for rows.Next() {
		var th store.ThreadData
		var participants []byte
		if err := rows.Scan(&th.ThreadID, &th.RoomID, &participants, &th.LastActivityAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(participants, &th.Participants); err != nil {
			return nil, err
		}
		out = append(out, th)
	}
	return out, rows.Err()
}
