package bus

import (
	"context"
	"time"
)

// Message represents one inbound chat message as observed by the core.
// Immutable once published; consumers never mutate a delivered Message.
type Message struct {
	ID              string            `json:"id"`
	Seq             uint64            `json:"seq"` // monotonic arrival number, assigned at publish
	Channel         string            `json:"channel"`
	RoomID          string            `json:"room_id"`
	ThreadID        string            `json:"thread_id,omitempty"` // empty = top-level room message
	Sender          string            `json:"sender"`
	Body            string            `json:"body"`
	MentionedAgents []string          `json:"mentioned_agents,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// InThread reports whether the message belongs to a thread rather than
// the top level of its room.
func (m Message) InThread() bool { return m.ThreadID != "" }

// OutboundMessage represents a reply to be sent back to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	RoomID   string            `json:"room_id"`
	ThreadID string            `json:"thread_id,omitempty"`
	Content  string            `json:"content"`
	Agent    string            `json:"agent,omitempty"` // responding agent, for attribution
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Event represents a server-side event to broadcast to gateway clients.
type Event struct {
	Name    string      `json:"name"` // e.g. "decision", "dispatch", "invite"
	Payload interface{} `json:"payload,omitempty"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// Used by the gateway server and agent loops to decouple from MessageBus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageRouter abstracts inbound/outbound message routing between
// channels and the agent runtime.
type MessageRouter interface {
	PublishInbound(msg Message)
	SubscribeInbound(agent string) <-chan Message
	PublishOutbound(msg OutboundMessage)
	ConsumeOutbound(ctx context.Context) (OutboundMessage, bool)
}
