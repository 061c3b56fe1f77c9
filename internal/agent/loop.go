package agent

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/classify"
	"github.com/nextlevelbuilder/threadclaw/internal/decision"
)

// Loop is one agent's message-handling task. Messages are handled
// serially in arrival order, so one agent never reorders a thread;
// different agents' loops interleave freely.
type Loop struct {
	name    string
	deps    Deps
	queue   <-chan bus.Message
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// NewLoop registers an agent on the bus and returns its loop.
func NewLoop(name string, deps Deps) *Loop {
	var limiter *rate.Limiter
	if deps.RateLimitRPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(deps.RateLimitRPM)/60.0), deps.RateLimitRPM)
	}
	return &Loop{
		name:    name,
		deps:    deps,
		queue:   deps.Bus.SubscribeInbound(name),
		limiter: limiter,
		tracer:  otel.Tracer("threadclaw/agent"),
	}
}

// Name returns the agent this loop serves.
func (l *Loop) Name() string { return l.name }

// Run consumes the agent's queue until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("agent loop started", "agent", l.name)
	for {
		select {
		case <-ctx.Done():
			slog.Info("agent loop stopped", "agent", l.name)
			return
		case msg := <-l.queue:
			l.handle(ctx, msg)
		}
	}
}

func (l *Loop) handle(ctx context.Context, msg bus.Message) {
	ctx, span := l.tracer.Start(ctx, "agent.handle",
		trace.WithAttributes(
			attribute.String("agent", l.name),
			attribute.String("message.id", msg.ID),
		))
	defer span.End()

	cls, err := l.deps.Classifier.Classify(msg.Body)
	if err != nil {
		// Command parse errors are replied to by the command loop.
		return
	}
	if cls.Kind == classify.KindCommand {
		return
	}

	mentions := cls.Mentions
	if len(mentions) == 0 && len(msg.MentionedAgents) > 0 {
		// Channel-provided structured mentions (e.g. Discord mention
		// entities) when the body carries none.
		mentions = msg.MentionedAgents
	}

	res := l.deps.Engine.Decide(ctx, msg, mentions)
	if res.Mode == decision.ModeNone || !contains(res.Responders, l.name) {
		return
	}

	if !l.deps.Tracker.ShouldDispatch(l.name, msg) {
		slog.Debug("duplicate suppressed", "agent", l.name, "message_id", msg.ID)
		return
	}

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return
		}
	}

	// Commit the cursor before acting. A crash after this point
	// under-delivers once; acting first could duplicate a visible reply
	// after restart, which is the worse failure for a chat platform.
	if err := l.deps.Tracker.MarkDispatched(ctx, l.name, msg); err != nil {
		slog.Error("cursor commit failed, skipping dispatch", "agent", l.name, "message_id", msg.ID, "error", err)
		return
	}

	l.dispatch(ctx, msg, res)
}

func (l *Loop) dispatch(ctx context.Context, msg bus.Message, res decision.Result) {
	reply, err := l.deps.Executor.Execute(ctx, ExecuteRequest{
		Agent:    l.name,
		Message:  msg,
		Decision: res,
		Team:     res.Responders,
	})
	if err != nil {
		// Silent no-response is preferable to a visible error here.
		slog.Error("executor failed", "agent", l.name, "message_id", msg.ID, "error", err)
		return
	}

	if reply != "" {
		if err := l.deps.Adapter.SendReply(ctx, msg.RoomID, msg.ThreadID, reply); err != nil {
			slog.Error("reply send failed", "agent", l.name, "room", msg.RoomID, "error", err)
		}
	}

	l.deps.Threads.RecordParticipation(ctx, msg.ThreadID, msg.RoomID, l.name)
	l.deps.Registry.TouchActivity(l.name, msg.ThreadID)

	if l.deps.Events != nil {
		l.deps.Events.Broadcast(bus.Event{
			Name: "dispatch",
			Payload: map[string]interface{}{
				"agent":      l.name,
				"message_id": msg.ID,
				"thread_id":  msg.ThreadID,
				"mode":       res.Mode,
				"team_mode":  res.TeamMode,
			},
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
