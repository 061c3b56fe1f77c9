package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/classify"
)

// commandConsumer is the pseudo-agent name the command loop subscribes
// and tracks its cursor under. Underscore keeps it out of any real roster.
const commandConsumer = "_commands"

// CommandLoop consumes the inbound stream once for the whole process and
// handles slash commands and their parse errors. Running it as its own
// consumer keeps command handling out of the decision pipeline and makes
// command replies single-shot even though every agent loop also sees the
// message.
type CommandLoop struct {
	deps  Deps
	queue <-chan bus.Message
}

// NewCommandLoop registers the command consumer on the bus.
func NewCommandLoop(deps Deps) *CommandLoop {
	return &CommandLoop{
		deps:  deps,
		queue: deps.Bus.SubscribeInbound(commandConsumer),
	}
}

// Run consumes until ctx is cancelled.
func (c *CommandLoop) Run(ctx context.Context) {
	slog.Info("command loop started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("command loop stopped")
			return
		case msg := <-c.queue:
			c.handle(ctx, msg)
		}
	}
}

func (c *CommandLoop) handle(ctx context.Context, msg bus.Message) {
	cls, err := c.deps.Classifier.Classify(msg.Body)
	if err != nil {
		var perr *classify.ParseError
		if !errors.As(err, &perr) {
			slog.Warn("classify failed", "message_id", msg.ID, "error", err)
			return
		}
		if c.deps.Tracker.ShouldDispatch(commandConsumer, msg) {
			if err := c.deps.Tracker.MarkDispatched(ctx, commandConsumer, msg); err != nil {
				slog.Error("command cursor commit failed", "message_id", msg.ID, "error", err)
				return
			}
			c.deps.Commands.ReplyParseError(ctx, msg, perr)
		}
		return
	}
	if cls.Kind != classify.KindCommand {
		return
	}

	// Commands mutate the registry, so restart replay must not re-run
	// them: the same cursor gate as agent dispatch applies.
	if !c.deps.Tracker.ShouldDispatch(commandConsumer, msg) {
		return
	}
	if err := c.deps.Tracker.MarkDispatched(ctx, commandConsumer, msg); err != nil {
		slog.Error("command cursor commit failed", "message_id", msg.ID, "error", err)
		return
	}

	c.deps.Commands.Handle(ctx, msg, cls.Command)

	if c.deps.Events != nil {
		c.deps.Events.Broadcast(bus.Event{
			Name: "command",
			Payload: map[string]interface{}{
				"name":       cls.Command.Name,
				"message_id": msg.ID,
				"thread_id":  msg.ThreadID,
			},
		})
	}
}
