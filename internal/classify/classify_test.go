package classify

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestClassifier() *Classifier {
	return New([]string{"claw", "scout", "archivist"})
}

func TestExtractMentions(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"no mentions", "what does everyone think?", nil},
		{"single mention", "hey @claw can you look at this", []string{"claw"}},
		{"multiple in order", "@scout then @claw please", []string{"scout", "claw"}},
		{"duplicates collapse", "@claw @claw @claw", []string{"claw"}},
		{"case insensitive", "ping @Claw and @SCOUT", []string{"claw", "scout"}},
		{"trailing punctuation", "thanks @claw, and @scout!", []string{"claw", "scout"}},
		{"unknown names ignored", "@nobody @claw @ghost", []string{"claw"}},
		{"bare at sign", "email me @ work, @claw knows", []string{"claw"}},
		{"mid-word at not a mention", "user@example.com pinged @scout", []string{"scout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, err := c.Classify(tt.body)
			if err != nil {
				t.Fatalf("Classify(%q) error: %v", tt.body, err)
			}
			if cls.Kind != KindText {
				t.Fatalf("Kind = %v, want KindText", cls.Kind)
			}
			if !reflect.DeepEqual(cls.Mentions, tt.want) {
				t.Errorf("Mentions = %v, want %v", cls.Mentions, tt.want)
			}
		})
	}
}

func TestClassifyCommands(t *testing.T) {
	c := newTestClassifier()

	twoHours := 2 * time.Hour
	thirtyMin := 30 * time.Minute
	threeDays := 72 * time.Hour

	tests := []struct {
		name     string
		body     string
		wantName string
		wantArgs []string
		wantDur  *time.Duration
	}{
		{"invite plain", "/invite claw", "invite", []string{"claw"}, nil},
		{"invite with at", "/invite @claw", "invite", []string{"claw"}, nil},
		{"invite hours", "/invite claw for 2 hours", "invite", []string{"claw"}, &twoHours},
		{"invite singular hour", "/invite claw for 2 hour", "invite", []string{"claw"}, &twoHours},
		{"invite minutes", "/invite scout for 30 minutes", "invite", []string{"scout"}, &thirtyMin},
		{"invite days", "/invite scout for 3 days", "invite", []string{"scout"}, &threeDays},
		{"uninvite", "/uninvite claw", "uninvite", []string{"claw"}, nil},
		{"uninvite with at", "/uninvite @Claw", "uninvite", []string{"claw"}, nil},
		{"list", "/list_invites", "list_invites", nil, nil},
		{"help", "/help", "help", nil, nil},
		{"leading whitespace", "  /help", "help", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, err := c.Classify(tt.body)
			if err != nil {
				t.Fatalf("Classify(%q) error: %v", tt.body, err)
			}
			if cls.Kind != KindCommand {
				t.Fatalf("Kind = %v, want KindCommand", cls.Kind)
			}
			if cls.Command.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cls.Command.Name, tt.wantName)
			}
			if !reflect.DeepEqual(cls.Command.Args, tt.wantArgs) {
				t.Errorf("Args = %v, want %v", cls.Command.Args, tt.wantArgs)
			}
			switch {
			case tt.wantDur == nil && cls.Command.Duration != nil:
				t.Errorf("Duration = %v, want nil", *cls.Command.Duration)
			case tt.wantDur != nil && cls.Command.Duration == nil:
				t.Errorf("Duration = nil, want %v", *tt.wantDur)
			case tt.wantDur != nil && *cls.Command.Duration != *tt.wantDur:
				t.Errorf("Duration = %v, want %v", *cls.Command.Duration, *tt.wantDur)
			}
		})
	}
}

func TestClassifyParseErrors(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		body string
	}{
		{"bare slash", "/"},
		{"unknown command", "/summon claw"},
		{"invite no agent", "/invite"},
		{"invite malformed duration clause", "/invite claw for two hours"},
		{"invite negative duration", "/invite claw for -1 hours"},
		{"invite zero duration", "/invite claw for 0 hours"},
		{"invite bad unit", "/invite claw for 2 fortnights"},
		{"invite truncated clause", "/invite claw for 2"},
		{"uninvite no agent", "/uninvite"},
		{"uninvite extra args", "/uninvite claw scout"},
		{"list with args", "/list_invites claw"},
		{"help with args", "/help me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify(tt.body)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Classify(%q) = %v, want *ParseError", tt.body, err)
			}
			if perr.Hint == "" {
				t.Error("ParseError.Hint is empty, users need a usable hint")
			}
		})
	}
}

// A command never flows into the mention path, even when it names agents.
func TestCommandBodiesCarryNoMentions(t *testing.T) {
	c := newTestClassifier()
	cls, err := c.Classify("/invite @claw")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if len(cls.Mentions) != 0 {
		t.Errorf("Mentions = %v, want none for a command", cls.Mentions)
	}
}

func TestReloadSwapsRoster(t *testing.T) {
	c := New([]string{"claw"})
	cls, _ := c.Classify("ping @scout")
	if len(cls.Mentions) != 0 {
		t.Fatalf("unexpected mention before reload: %v", cls.Mentions)
	}

	c.Reload([]string{"scout"})
	cls, _ = c.Classify("ping @scout and @claw")
	if !reflect.DeepEqual(cls.Mentions, []string{"scout"}) {
		t.Errorf("Mentions after reload = %v, want [scout]", cls.Mentions)
	}
}
