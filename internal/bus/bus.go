package bus

import (
	"context"
	"log/slog"
	"sync"
)

const defaultQueueSize = 256

// MessageBus fans inbound messages out to per-agent subscriber queues and
// funnels outbound replies into a single consumer queue. Each agent queue
// preserves arrival order, so one agent never sees messages reordered.
type MessageBus struct {
	mu        sync.Mutex
	seq       uint64
	inbound   map[string]chan Message // agent name -> queue
	outbound  chan OutboundMessage
	handlers  map[string]EventHandler
	queueSize int
}

// NewMessageBus creates a bus with default queue sizes.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:   make(map[string]chan Message),
		outbound:  make(chan OutboundMessage, defaultQueueSize),
		handlers:  make(map[string]EventHandler),
		queueSize: defaultQueueSize,
	}
}

// SeedSeq advances the arrival counter to at least seq. Called once at
// startup with the highest persisted dispatch cursor, so messages
// arriving after a restart always sort strictly after everything already
// committed in a previous run.
func (b *MessageBus) SeedSeq(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq > b.seq {
		b.seq = seq
	}
}

// PublishInbound assigns the message its arrival sequence number and
// delivers it to every subscribed agent queue. A full queue drops the
// message for that agent rather than blocking the publishing channel.
func (b *MessageBus) PublishInbound(msg Message) {
	b.mu.Lock()
	b.seq++
	msg.Seq = b.seq
	queues := make([]chan Message, 0, len(b.inbound))
	agents := make([]string, 0, len(b.inbound))
	for agent, q := range b.inbound {
		queues = append(queues, q)
		agents = append(agents, agent)
	}
	b.mu.Unlock()

	for i, q := range queues {
		select {
		case q <- msg:
		default:
			slog.Warn("inbound queue full, dropping message", "agent", agents[i], "message_id", msg.ID)
		}
	}
}

// SubscribeInbound registers an agent and returns its inbound queue.
// Subscribing the same agent twice returns the existing queue.
func (b *MessageBus) SubscribeInbound(agent string) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.inbound[agent]; ok {
		return q
	}
	q := make(chan Message, b.queueSize)
	b.inbound[agent] = q
	return q
}

// UnsubscribeInbound removes an agent's queue. Pending messages are dropped.
func (b *MessageBus) UnsubscribeInbound(agent string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inbound, agent)
}

// PublishOutbound enqueues a reply for channel delivery.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("outbound queue full, dropping reply", "channel", msg.Channel, "room", msg.RoomID)
	}
}

// ConsumeOutbound blocks until a reply is available or ctx is done.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// Subscribe registers an event handler under an id.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
}

// Unsubscribe removes an event handler.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Broadcast delivers an event to all subscribed handlers.
// Handlers run synchronously; they must not block.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.Lock()
	handlers := make([]EventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}
