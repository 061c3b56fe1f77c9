// Package channels provides the chat platform abstraction layer.
// Channels connect external platforms (Discord, test fakes) to the core
// via the message bus; the core only ever talks to the Adapter surface.
package channels

import (
	"context"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
)

// Channel is the lifecycle interface every platform implementation
// satisfies.
type Channel interface {
	// Name returns the channel identifier (e.g. "discord").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is processing messages.
	IsRunning() bool
}

// Adapter is the narrow platform surface the core calls directly:
// replying into a room or thread, fetching a thread transcript, and the
// uninvite call-through for revoking low-level room access.
type Adapter interface {
	SendReply(ctx context.Context, roomID, threadID, text string) error
	GetThreadHistory(ctx context.Context, threadID string) ([]bus.Message, error)
	RemoveAgentFromRoom(ctx context.Context, agent, roomID string) error
}
