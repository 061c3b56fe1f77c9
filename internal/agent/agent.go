// Package agent runs the per-agent message-handling loops. Each agent
// consumes the shared inbound stream independently: it classifies the
// message, asks the decision engine whether it should respond, passes the
// dedup gate, and only then invokes the external executor.
package agent

import (
	"context"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/channels"
	"github.com/nextlevelbuilder/threadclaw/internal/classify"
	"github.com/nextlevelbuilder/threadclaw/internal/command"
	"github.com/nextlevelbuilder/threadclaw/internal/decision"
	"github.com/nextlevelbuilder/threadclaw/internal/invite"
	"github.com/nextlevelbuilder/threadclaw/internal/thread"
	"github.com/nextlevelbuilder/threadclaw/internal/track"
)

// ExecuteRequest is what the external agent-execution collaborator gets.
type ExecuteRequest struct {
	Agent    string
	Message  bus.Message
	Decision decision.Result
	// Team is the full responder order when the decision is team-shaped,
	// so a coordinating executor knows its peers.
	Team []string
}

// Executor produces an agent's reply text. It is an external collaborator
// (model invocation lives outside this repository); failures are caught
// at this boundary and never surface to users.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req ExecuteRequest) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, req ExecuteRequest) (string, error) {
	return f(ctx, req)
}

// Deps holds the shared collaborators for all loops.
type Deps struct {
	Bus        *bus.MessageBus
	Classifier *classify.Classifier
	Engine     *decision.Engine
	Tracker    *track.Tracker
	Registry   *invite.Registry
	Threads    *thread.Manager
	Adapter    channels.Adapter
	Executor   Executor
	Commands   *command.Handler
	Events     bus.EventPublisher

	// RateLimitRPM caps dispatches per agent per minute. Zero disables.
	RateLimitRPM int
}
