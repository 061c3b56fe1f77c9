package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/channels"
	"github.com/nextlevelbuilder/threadclaw/internal/classify"
	"github.com/nextlevelbuilder/threadclaw/internal/command"
	"github.com/nextlevelbuilder/threadclaw/internal/decision"
	"github.com/nextlevelbuilder/threadclaw/internal/invite"
	"github.com/nextlevelbuilder/threadclaw/internal/store"
	"github.com/nextlevelbuilder/threadclaw/internal/thread"
	"github.com/nextlevelbuilder/threadclaw/internal/track"
)

// harness wires a full in-memory pipeline: channel -> bus -> loops.
type harness struct {
	channel  *channels.MemoryChannel
	registry *invite.Registry
	tracker  *track.Tracker
	threads  *thread.Manager
	stores   *store.Stores
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, roster []string, roomNatives []string, executor Executor) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	stores := store.NewMemoryStores().Stores()
	msgBus := bus.NewMessageBus()
	channel := channels.NewMemoryChannel(msgBus)

	known := func(name string) bool {
		for _, r := range roster {
			if r == name {
				return true
			}
		}
		return false
	}
	registry, err := invite.NewRegistry(ctx, stores.Invites, known)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tracker, err := track.NewTracker(ctx, stores.Cursors)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	threads, err := thread.NewManager(ctx, stores.Threads)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	engine := decision.NewEngine(threads, registry, func(string) []string { return roomNatives }, nil)
	if executor == nil {
		executor = EchoExecutor{}
	}

	deps := Deps{
		Bus:        msgBus,
		Classifier: classify.New(roster),
		Engine:     engine,
		Tracker:    tracker,
		Registry:   registry,
		Threads:    threads,
		Adapter:    channel,
		Executor:   executor,
		Commands:   command.NewHandler(registry, channel, false),
		Events:     msgBus,
	}

	for _, name := range roster {
		go NewLoop(name, deps).Run(ctx)
	}
	go NewCommandLoop(deps).Run(ctx)

	return &harness{
		channel:  channel,
		registry: registry,
		tracker:  tracker,
		threads:  threads,
		stores:   stores,
		cancel:   cancel,
	}
}

func (h *harness) waitForReplies(t *testing.T, n int) []bus.OutboundMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if replies := h.channel.Replies(); len(replies) >= n {
			return replies
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d replies, got %d", n, len(h.channel.Replies()))
	return nil
}

func (h *harness) settle() {
	// Give in-flight handling a moment to finish before negative checks.
	time.Sleep(100 * time.Millisecond)
}

func inboundMsg(id, threadID, body string) bus.Message {
	return bus.Message{ID: id, RoomID: "room1", ThreadID: threadID, Sender: "alice", Body: body, Timestamp: time.Now()}
}

func TestMentionedAgentReplies(t *testing.T) {
	h := newHarness(t, []string{"claw", "scout"}, []string{"claw", "scout"}, nil)

	h.channel.Deliver(inboundMsg("m1", "t1", "hey @claw, thoughts?"))

	replies := h.waitForReplies(t, 1)
	if !strings.Contains(replies[0].Content, "[claw]") {
		t.Errorf("reply = %q, want claw's reply", replies[0].Content)
	}

	h.settle()
	if len(h.channel.Replies()) != 1 {
		t.Errorf("got %d replies, want exactly 1 (scout was not mentioned)", len(h.channel.Replies()))
	}
	if got := h.threads.Participants("t1"); len(got) != 1 || got[0] != "claw" {
		t.Errorf("participants = %v, want [claw]", got)
	}
}

func TestTopLevelMessageGetsNoReply(t *testing.T) {
	h := newHarness(t, []string{"claw"}, []string{"claw"}, nil)

	h.channel.Deliver(inboundMsg("m1", "", "hey @claw, thoughts?"))

	h.settle()
	if got := h.channel.Replies(); len(got) != 0 {
		t.Errorf("replies = %v, want none for a top-level message", got)
	}
}

func TestSingleParticipantContinues(t *testing.T) {
	h := newHarness(t, []string{"claw", "scout"}, []string{"claw", "scout"}, nil)

	h.channel.Deliver(inboundMsg("m1", "t1", "hey @claw, thoughts?"))
	h.waitForReplies(t, 1)

	// Follow-up without a mention: claw is the only participant.
	h.channel.Deliver(inboundMsg("m2", "t1", "and what about the edge cases?"))
	replies := h.waitForReplies(t, 2)
	if !strings.Contains(replies[1].Content, "[claw]") {
		t.Errorf("follow-up reply = %q, want claw to continue", replies[1].Content)
	}
}

func TestTeamCollaboration(t *testing.T) {
	h := newHarness(t, []string{"claw", "scout"}, []string{"claw", "scout"}, nil)

	h.channel.Deliver(inboundMsg("m1", "t1", "@claw @scout please review"))
	h.waitForReplies(t, 2)

	// Both have participated now; an unaddressed follow-up goes to both.
	h.channel.Deliver(inboundMsg("m2", "t1", "any blockers left?"))
	replies := h.waitForReplies(t, 4)

	var team int
	for _, r := range replies[2:] {
		if strings.Contains(r.Content, "collaborate") {
			team++
		}
	}
	if team != 2 {
		t.Errorf("got %d collaborate replies, want 2", team)
	}
}

func TestDuplicateDeliverySuppressed(t *testing.T) {
	h := newHarness(t, []string{"claw"}, []string{"claw"}, nil)

	msg := inboundMsg("m1", "t1", "hey @claw")
	h.channel.Deliver(msg)
	h.waitForReplies(t, 1)
	h.channel.Deliver(msg) // redelivery with the same id

	h.settle()
	if got := len(h.channel.Replies()); got != 1 {
		t.Errorf("got %d replies after redelivery, want 1", got)
	}
}

func TestExecutorFailureIsSilent(t *testing.T) {
	failing := ExecutorFunc(func(context.Context, ExecuteRequest) (string, error) {
		return "", errors.New("model unavailable")
	})
	h := newHarness(t, []string{"claw"}, []string{"claw"}, failing)

	h.channel.Deliver(inboundMsg("m1", "t1", "hey @claw"))

	h.settle()
	if got := h.channel.Replies(); len(got) != 0 {
		t.Errorf("replies = %v, want none when the executor fails", got)
	}
	// The attempt was still committed: no retry storm after restart.
	if cur, ok := h.tracker.Cursor("claw"); !ok || cur.LastMessageID != "m1" {
		t.Errorf("cursor = %+v, %v; want m1 committed despite the failure", cur, ok)
	}
}

func TestCommandHandledOnce(t *testing.T) {
	h := newHarness(t, []string{"claw", "scout"}, []string{"claw", "scout"}, nil)

	h.channel.Deliver(inboundMsg("m1", "t1", "/invite claw"))

	replies := h.waitForReplies(t, 1)
	if !strings.Contains(replies[0].Content, "invited claw") {
		t.Errorf("reply = %q, want invite confirmation", replies[0].Content)
	}

	h.settle()
	// One reply total: agent loops must not treat the command as a message.
	if got := len(h.channel.Replies()); got != 1 {
		t.Errorf("got %d replies to a command, want exactly 1", got)
	}
	if !h.registry.IsInvited("claw", "t1") {
		t.Error("command should have created the invitation")
	}
}

func TestParseErrorRepliedWithHint(t *testing.T) {
	h := newHarness(t, []string{"claw"}, []string{"claw"}, nil)

	h.channel.Deliver(inboundMsg("m1", "t1", "/invite"))

	replies := h.waitForReplies(t, 1)
	if !strings.Contains(replies[0].Content, "usage: /invite") {
		t.Errorf("reply = %q, want usage hint", replies[0].Content)
	}
}

func TestInvitedAgentRespondsLikeNative(t *testing.T) {
	// scout is not native to the room but gets invited into the thread.
	h := newHarness(t, []string{"claw", "scout"}, []string{"claw"}, nil)

	h.channel.Deliver(inboundMsg("m1", "t1", "/invite scout"))
	h.waitForReplies(t, 1)

	h.channel.Deliver(inboundMsg("m2", "t1", "welcome aboard"))
	replies := h.waitForReplies(t, 2)
	if !strings.Contains(replies[1].Content, "[scout]") {
		t.Errorf("reply = %q, want the invited scout to respond", replies[1].Content)
	}
}

func TestRestartDoesNotReplay(t *testing.T) {
	h := newHarness(t, []string{"claw"}, []string{"claw"}, nil)

	h.channel.Deliver(inboundMsg("m1", "t1", "hey @claw"))
	h.waitForReplies(t, 1)
	h.cancel()

	// Second process over the same stores.
	ctx := context.Background()
	tracker, err := track.NewTracker(ctx, h.stores.Cursors)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if tracker.ShouldDispatch("claw", bus.Message{ID: "m1", Seq: 1}) {
		t.Error("restarted tracker must suppress the already-handled message")
	}
	if !tracker.ShouldDispatch("claw", bus.Message{ID: "m2", Seq: 2}) {
		t.Error("restarted tracker must allow new messages")
	}
}

func TestHTTPExecutorRequestShape(t *testing.T) {
	// Sanity-check the request mapping without a live server.
	req := ExecuteRequest{
		Agent:    "claw",
		Message:  inboundMsg("m1", "t1", "hello"),
		Decision: decision.Result{Responders: []string{"claw", "scout"}, Mode: decision.ModeTeam, TeamMode: decision.TeamCollaborate},
		Team:     []string{"claw", "scout"},
	}
	reply, err := EchoExecutor{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := fmt.Sprintf("[claw, collaborate of 2] %s", "hello")
	if reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}
}
