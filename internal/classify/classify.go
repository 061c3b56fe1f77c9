// Package classify parses raw message text into agent mentions and slash
// commands. Parsing is purely textual; no side effects.
package classify

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CommandPrefix starts a command message, e.g. "/invite claw".
const CommandPrefix = '/'

// Kind discriminates classification results.
type Kind int

const (
	KindText    Kind = iota // plain message, possibly with mentions
	KindCommand             // recognized slash command
)

// Command is a parsed slash command.
type Command struct {
	Name string   // "invite", "uninvite", "list_invites", "help"
	Args []string

	// Invite-specific, populated when Name == "invite" and a duration
	// clause was present ("for 2 hours").
	Duration *time.Duration
}

// Classification is the classifier output: either a command or the set of
// mentioned agents (possibly empty) for a plain message.
type Classification struct {
	Kind     Kind
	Command  *Command
	Mentions []string // recognized agents in mention order, deduped
}

// ParseError reports malformed command syntax with a user-facing hint.
type ParseError struct {
	Input string
	Hint  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Hint)
}

var commandNames = map[string]bool{
	"invite":       true,
	"uninvite":     true,
	"list_invites": true,
	"help":         true,
}

// Classifier recognizes mentions of known agents and slash commands.
// Safe for concurrent use; Reload swaps the roster on config changes.
type Classifier struct {
	mu    sync.RWMutex
	known map[string]bool
}

// New creates a classifier that recognizes the given agent names as
// mention targets. Matching is case-insensitive.
func New(agents []string) *Classifier {
	c := &Classifier{}
	c.Reload(agents)
	return c
}

// Reload replaces the recognized agent roster.
func (c *Classifier) Reload(agents []string) {
	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[strings.ToLower(a)] = true
	}
	c.mu.Lock()
	c.known = known
	c.mu.Unlock()
}

// Classify parses a message body. Command parse failures return a
// *ParseError; they never flow into the decision pipeline.
func (c *Classifier) Classify(body string) (Classification, error) {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == CommandPrefix {
		cmd, err := c.parseCommand(trimmed)
		if err != nil {
			return Classification{}, err
		}
		return Classification{Kind: KindCommand, Command: cmd}, nil
	}
	return Classification{Kind: KindText, Mentions: c.extractMentions(body)}, nil
}

// extractMentions returns known agents referenced as @name tokens, in
// first-appearance order with duplicates removed.
func (c *Classifier) extractMentions(body string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(body) {
		if !strings.HasPrefix(field, "@") {
			continue
		}
		name := strings.ToLower(strings.Trim(field[1:], ".,!?:;()"))
		if name == "" || !c.known[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func (c *Classifier) parseCommand(text string) (*Command, error) {
	fields := strings.Fields(strings.TrimPrefix(text, string(CommandPrefix)))
	if len(fields) == 0 {
		return nil, &ParseError{Input: text, Hint: "empty command; try /help"}
	}
	name := strings.ToLower(fields[0])
	if !commandNames[name] {
		return nil, &ParseError{Input: text, Hint: fmt.Sprintf("unknown command %q; try /help", name)}
	}
	args := fields[1:]

	switch name {
	case "invite":
		return parseInvite(text, args)
	case "uninvite":
		if len(args) != 1 {
			return nil, &ParseError{Input: text, Hint: "usage: /uninvite <agent>"}
		}
		return &Command{Name: name, Args: []string{normalizeAgentArg(args[0])}}, nil
	default: // list_invites, help
		if len(args) != 0 {
			return nil, &ParseError{Input: text, Hint: fmt.Sprintf("/%s takes no arguments", name)}
		}
		return &Command{Name: name}, nil
	}
}

// parseInvite handles "invite <agent> [for <N> <hours|minutes|days>]".
func parseInvite(text string, args []string) (*Command, error) {
	const usage = "usage: /invite <agent> [for <N> hours]"
	if len(args) == 0 {
		return nil, &ParseError{Input: text, Hint: usage}
	}
	cmd := &Command{Name: "invite", Args: []string{normalizeAgentArg(args[0])}}
	rest := args[1:]
	if len(rest) == 0 {
		return cmd, nil
	}
	if len(rest) != 3 || strings.ToLower(rest[0]) != "for" {
		return nil, &ParseError{Input: text, Hint: usage}
	}
	n, err := strconv.Atoi(rest[1])
	if err != nil || n <= 0 {
		return nil, &ParseError{Input: text, Hint: "duration must be a positive number"}
	}
	var unit time.Duration
	switch strings.ToLower(strings.TrimSuffix(rest[2], "s")) + "s" {
	case "hours":
		unit = time.Hour
	case "minutes", "mins":
		unit = time.Minute
	case "days":
		unit = 24 * time.Hour
	default:
		return nil, &ParseError{Input: text, Hint: "duration unit must be hours, minutes, or days"}
	}
	d := time.Duration(n) * unit
	cmd.Duration = &d
	return cmd, nil
}

// normalizeAgentArg strips a leading @ so "/invite @claw" and "/invite claw"
// are equivalent.
func normalizeAgentArg(arg string) string {
	return strings.ToLower(strings.TrimPrefix(arg, "@"))
}
