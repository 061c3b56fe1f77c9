package channels

import (
	"context"
	"sync"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
)

// MemoryChannel is an in-process channel used by local mode and tests.
// It records every reply and serves thread history from the messages it
// has observed.
type MemoryChannel struct {
	*BaseChannel

	mu      sync.Mutex
	history map[string][]bus.Message // thread_id -> transcript
	replies []bus.OutboundMessage
	removed []string // "agent@room" call-through log
}

// NewMemoryChannel creates a memory channel on the given bus.
func NewMemoryChannel(msgBus *bus.MessageBus) *MemoryChannel {
	return &MemoryChannel{
		BaseChannel: NewBaseChannel("memory", msgBus, nil),
		history:     make(map[string][]bus.Message),
	}
}

func (c *MemoryChannel) Start(context.Context) error { c.SetRunning(true); return nil }
func (c *MemoryChannel) Stop(context.Context) error  { c.SetRunning(false); return nil }

// Deliver publishes an inbound message and records it in thread history.
func (c *MemoryChannel) Deliver(msg bus.Message) {
	msg.Channel = c.Name()
	if msg.InThread() {
		c.mu.Lock()
		c.history[msg.ThreadID] = append(c.history[msg.ThreadID], msg)
		c.mu.Unlock()
	}
	c.Bus().PublishInbound(msg)
}

// Send records the outbound message.
func (c *MemoryChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, msg)
	return nil
}

// SendReply records a reply addressed to a room or thread.
func (c *MemoryChannel) SendReply(_ context.Context, roomID, threadID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, bus.OutboundMessage{
		Channel:  c.Name(),
		RoomID:   roomID,
		ThreadID: threadID,
		Content:  text,
	})
	return nil
}

// GetThreadHistory returns the observed transcript for a thread.
func (c *MemoryChannel) GetThreadHistory(_ context.Context, threadID string) ([]bus.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bus.Message(nil), c.history[threadID]...), nil
}

// RemoveAgentFromRoom records the call-through.
func (c *MemoryChannel) RemoveAgentFromRoom(_ context.Context, agent, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, agent+"@"+roomID)
	return nil
}

// Replies returns a copy of all recorded replies.
func (c *MemoryChannel) Replies() []bus.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bus.OutboundMessage(nil), c.replies...)
}

// Removed returns the recorded room-removal call-throughs.
func (c *MemoryChannel) Removed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.removed...)
}
