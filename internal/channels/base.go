package channels

import (
	"sync/atomic"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
)

// BaseChannel provides the common plumbing for channel implementations:
// name, bus access, sender allowlist, and the running flag.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom map[string]bool // empty = open
	running   atomic.Bool
}

// NewBaseChannel creates the shared channel base.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowFrom []string) *BaseChannel {
	allowed := make(map[string]bool, len(allowFrom))
	for _, id := range allowFrom {
		allowed[id] = true
	}
	return &BaseChannel{name: name, bus: msgBus, allowFrom: allowed}
}

func (b *BaseChannel) Name() string      { return b.name }
func (b *BaseChannel) IsRunning() bool   { return b.running.Load() }
func (b *BaseChannel) SetRunning(v bool) { b.running.Store(v) }

// Bus returns the message bus for publishing inbound messages.
func (b *BaseChannel) Bus() *bus.MessageBus { return b.bus }

// IsAllowed checks the sender allowlist. An empty allowlist accepts all.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	return len(b.allowFrom) == 0 || b.allowFrom[senderID]
}
