// Package decision picks which agent(s), if any, respond to an inbound
// message. The engine applies five ordered rules over the merged set of
// native and invited participants; an invited agent is indistinguishable
// from a native one at every step.
package decision

// Mode is the shape of a response decision.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeSingle Mode = "single"
	ModeTeam   Mode = "team"
)

// TeamMode says how a team produces its response.
type TeamMode string

const (
	// TeamCoordinate is sequential, delegated contribution (explicit
	// mentions define the member order).
	TeamCoordinate TeamMode = "coordinate"
	// TeamCollaborate is parallel contribution merged into one reply.
	TeamCollaborate TeamMode = "collaborate"
)

// Rule identifies which ordered rule produced a decision.
type Rule int

const (
	RuleNone        Rule = iota // top-level message, no thread
	RuleMentions                // rule 1: explicit mentions
	RuleContinue                // rule 2: single participant continues
	RuleCollaborate             // rule 3: multiple participants, no mention
	RuleSuggest                 // rule 4: empty thread, routing suggester
)

// Result is the engine output for one message.
type Result struct {
	Responders []string `json:"responders,omitempty"`
	Mode       Mode     `json:"mode"`
	TeamMode   TeamMode `json:"team_mode,omitempty"` // only meaningful when Mode == ModeTeam
	Rule       Rule     `json:"-"`
}

// None is the empty decision.
func None() Result { return Result{Mode: ModeNone} }
