package decision

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/routing"
)

// Participation supplies the thread's first-appearance participant order.
// Satisfied by thread.Manager.
type Participation interface {
	Participants(threadID string) []string
}

// InviteSource supplies active (non-expired) invitations for a thread.
// Satisfied by invite.Registry.
type InviteSource interface {
	ActiveAgents(threadID string) []string
}

// Engine applies the ordered response rules. Stateless across messages;
// everything it reads is copied out of the owning components per call.
type Engine struct {
	participation Participation
	invites       InviteSource
	suggester     routing.Suggester
	// natives returns the agents natively configured for a room.
	natives func(roomID string) []string
	tracer  trace.Tracer
}

// NewEngine wires the engine to its collaborators. A nil suggester
// disables rule 4 (empty threads decide none).
func NewEngine(p Participation, inv InviteSource, natives func(string) []string, suggester routing.Suggester) *Engine {
	if suggester == nil {
		suggester = routing.NoneSuggester{}
	}
	return &Engine{
		participation: p,
		invites:       inv,
		suggester:     suggester,
		natives:       natives,
		tracer:        otel.Tracer("threadclaw/decision"),
	}
}

// Decide evaluates the ordered rules for one in-thread message.
// mentions is the classifier's recognized-mention order for the message.
//
// Rules, first match wins:
//  1. mentions present: mentioned agents respond (team/coordinate when >1)
//  2. exactly one participant: that agent continues, no mention needed
//  3. two or more participants: team/collaborate in first-appearance order
//  4. nobody has participated: ask the routing suggester; any failure,
//     timeout, or empty answer decides none
//
// Top-level messages (no thread) always decide none; command handling is a
// separate path diverted before the engine.
func (e *Engine) Decide(ctx context.Context, msg bus.Message, mentions []string) Result {
	ctx, span := e.tracer.Start(ctx, "decision.decide",
		trace.WithAttributes(
			attribute.String("message.id", msg.ID),
			attribute.String("thread.id", msg.ThreadID),
		))
	defer span.End()

	res := e.decide(ctx, msg, mentions)
	span.SetAttributes(
		attribute.String("decision.mode", string(res.Mode)),
		attribute.Int("decision.rule", int(res.Rule)),
		attribute.StringSlice("decision.responders", res.Responders),
	)
	return res
}

func (e *Engine) decide(ctx context.Context, msg bus.Message, mentions []string) Result {
	if !msg.InThread() {
		return None()
	}

	// Rule 1: explicit mentions always win, regardless of participation.
	if len(mentions) > 0 {
		if len(mentions) == 1 {
			return Result{Responders: mentions[:1:1], Mode: ModeSingle, Rule: RuleMentions}
		}
		members, teamMode := Resolve(RuleMentions, mentions, nil)
		return Result{Responders: members, Mode: ModeTeam, TeamMode: teamMode, Rule: RuleMentions}
	}

	participants := e.participating(msg.RoomID, msg.ThreadID)

	// Rule 2: a lone participant continues the conversation.
	if len(participants) == 1 {
		return Result{Responders: participants, Mode: ModeSingle, Rule: RuleContinue}
	}

	// Rule 3: several participants collaborate.
	if len(participants) >= 2 {
		members, teamMode := Resolve(RuleCollaborate, nil, participants)
		return Result{Responders: members, Mode: ModeTeam, TeamMode: teamMode, Rule: RuleCollaborate}
	}

	// Rule 4: empty thread, defer to the routing suggester.
	return e.suggest(ctx, msg)
}

// participating merges the thread's first-appearance order with active
// invitations: agents that have spoken first, then invitees that have not
// spoken yet, in invite order. Only currently-eligible agents survive the
// merge, and eligibility is pure set membership (native ∪ invited) --
// nothing downstream knows how an agent got in.
func (e *Engine) participating(roomID, threadID string) []string {
	invited := e.invites.ActiveAgents(threadID)

	eligible := make(map[string]bool)
	for _, a := range e.natives(roomID) {
		eligible[a] = true
	}
	for _, a := range invited {
		eligible[a] = true
	}

	var out []string
	for _, a := range e.participation.Participants(threadID) {
		if eligible[a] {
			out = append(out, a)
		}
	}
	for _, a := range invited {
		if !contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

// suggest wraps the external routing collaborator. Errors and timeouts
// never propagate; they decide none.
func (e *Engine) suggest(ctx context.Context, msg bus.Message) Result {
	candidates := e.natives(msg.RoomID)
	if len(candidates) == 0 {
		return None()
	}

	agent, err := e.suggester.Suggest(ctx, msg, candidates, routing.ThreadContext{
		ThreadID: msg.ThreadID,
		RoomID:   msg.RoomID,
	})
	if err != nil {
		slog.Debug("routing suggester failed", "message_id", msg.ID, "error", err)
		return None()
	}
	if agent == "" || !contains(candidates, agent) {
		return None()
	}
	return Result{Responders: []string{agent}, Mode: ModeSingle, Rule: RuleSuggest}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
