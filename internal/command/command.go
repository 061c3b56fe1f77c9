// Package command implements the text command surface: invite, uninvite,
// list_invites, and help. Every command produces a plain-text reply;
// command errors are the only failure class users ever see.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/channels"
	"github.com/nextlevelbuilder/threadclaw/internal/classify"
	"github.com/nextlevelbuilder/threadclaw/internal/invite"
)

const helpText = `Available commands:
/invite <agent> [for <N> hours] — invite an agent into this thread
/uninvite <agent> — remove an agent from this thread
/list_invites — show active invitations for this thread
/help — show this help message`

// Handler executes parsed commands against the invitation registry.
type Handler struct {
	registry *invite.Registry
	adapter  channels.Adapter
	// revokeRoomAccess forwards uninvites to the platform's low-level
	// room removal.
	revokeRoomAccess bool
}

// NewHandler creates a command handler.
func NewHandler(registry *invite.Registry, adapter channels.Adapter, revokeRoomAccess bool) *Handler {
	return &Handler{registry: registry, adapter: adapter, revokeRoomAccess: revokeRoomAccess}
}

// Handle runs one command and replies in the message's context. Replies
// are best-effort; send failures are logged, never propagated.
func (h *Handler) Handle(ctx context.Context, msg bus.Message, cmd *classify.Command) {
	var reply string
	switch cmd.Name {
	case "invite":
		reply = h.invite(ctx, msg, cmd)
	case "uninvite":
		reply = h.uninvite(ctx, msg, cmd)
	case "list_invites":
		reply = h.listInvites(msg)
	case "help":
		reply = helpText
	default:
		reply = fmt.Sprintf("unknown command %q; try /help", cmd.Name)
	}

	if err := h.adapter.SendReply(ctx, msg.RoomID, msg.ThreadID, reply); err != nil {
		slog.Warn("command reply failed", "command", cmd.Name, "room", msg.RoomID, "error", err)
	}
}

// ReplyParseError surfaces a classifier parse error to the user.
func (h *Handler) ReplyParseError(ctx context.Context, msg bus.Message, perr *classify.ParseError) {
	if err := h.adapter.SendReply(ctx, msg.RoomID, msg.ThreadID, perr.Hint); err != nil {
		slog.Warn("parse error reply failed", "room", msg.RoomID, "error", err)
	}
}

func (h *Handler) invite(ctx context.Context, msg bus.Message, cmd *classify.Command) string {
	if !msg.InThread() {
		return "invites only work inside a thread"
	}
	agent := cmd.Args[0]
	inv, err := h.registry.Invite(ctx, agent, msg.ThreadID, msg.RoomID, msg.Sender, cmd.Duration)
	switch {
	case errors.Is(err, invite.ErrUnknownAgent):
		return fmt.Sprintf("no agent named %q", agent)
	case errors.Is(err, invite.ErrNotThread):
		return "invites only work inside a thread"
	case err != nil:
		slog.Error("invite failed", "agent", agent, "thread", msg.ThreadID, "error", err)
		return "could not save the invitation, try again"
	}

	if inv.ExpiresAt != nil {
		return fmt.Sprintf("invited %s until %s", agent, inv.ExpiresAt.UTC().Format(time.RFC1123))
	}
	return fmt.Sprintf("invited %s to this thread", agent)
}

func (h *Handler) uninvite(ctx context.Context, msg bus.Message, cmd *classify.Command) string {
	if !msg.InThread() {
		return "uninvite only works inside a thread"
	}
	agent := cmd.Args[0]
	if !h.registry.Uninvite(ctx, agent, msg.ThreadID) {
		return fmt.Sprintf("%s was not invited to this thread", agent)
	}
	if h.revokeRoomAccess {
		if err := h.adapter.RemoveAgentFromRoom(ctx, agent, msg.RoomID); err != nil {
			slog.Warn("room access revocation failed", "agent", agent, "room", msg.RoomID, "error", err)
		}
	}
	return fmt.Sprintf("uninvited %s from this thread", agent)
}

func (h *Handler) listInvites(msg bus.Message) string {
	invites := h.registry.ListInvites(msg.ThreadID)
	if len(invites) == 0 {
		return "no active invitations in this thread"
	}
	var sb strings.Builder
	sb.WriteString("Invitations:\n")
	for _, inv := range invites {
		sb.WriteString("- " + inv.AgentName)
		if inv.ExpiresAt != nil {
			sb.WriteString(" (expires " + inv.ExpiresAt.UTC().Format(time.RFC1123) + ")")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
