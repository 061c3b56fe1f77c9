package invite

import (
	"context"
	"testing"
	"time"
)

func TestSweepRemovesExpired(t *testing.T) {
	r, stores := newTestRegistry(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	short := 10 * time.Minute
	if _, err := r.Invite(ctx, "claw", "t1", "room1", "alice", &short); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := r.Invite(ctx, "scout", "t1", "room1", "alice", nil); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	now = base.Add(time.Hour)
	NewSweeper(r, SweeperConfig{}).Sweep(ctx)

	if r.IsInvited("claw", "t1") {
		t.Error("expired invitation survived the sweep")
	}
	if !r.IsInvited("scout", "t1") {
		t.Error("open-ended invitation must survive the sweep")
	}

	// The removal is durable, not just in-memory.
	persisted, err := stores.Invites.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(persisted) != 1 || persisted[0].AgentName != "scout" {
		t.Errorf("persisted invitations = %v, want only scout", persisted)
	}
}

func TestSweepStaleEviction(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	if _, err := r.Invite(ctx, "claw", "t1", "room1", "alice", nil); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := r.Invite(ctx, "scout", "t1", "room1", "alice", nil); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	// scout stays active, claw goes quiet.
	now = base.Add(23 * time.Hour)
	r.TouchActivity("scout", "t1")

	now = base.Add(25 * time.Hour)
	sweeper := NewSweeper(r, SweeperConfig{StaleAfter: 24 * time.Hour})
	sweeper.Sweep(ctx)

	if r.IsInvited("claw", "t1") {
		t.Error("inactive invitation should have been evicted")
	}
	if !r.IsInvited("scout", "t1") {
		t.Error("recently active invitation must not be evicted")
	}
}

func TestSweepDisabledStaleEvictionByDefault(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	if _, err := r.Invite(ctx, "claw", "t1", "room1", "alice", nil); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	now = base.Add(30 * 24 * time.Hour)
	NewSweeper(r, SweeperConfig{}).Sweep(ctx)

	if !r.IsInvited("claw", "t1") {
		t.Error("open-ended invitation must survive indefinitely without stale eviction")
	}
}

func TestSweeperInvalidCronFallsBack(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := NewSweeper(r, SweeperConfig{CronExpr: "not a cron"})
	if s.cron != nil {
		t.Error("invalid cron expression should disable cron scheduling")
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := NewSweeper(r, SweeperConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

func TestSweepSparesRefreshedInvitation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	short := 10 * time.Minute
	if _, err := r.Invite(ctx, "claw", "t1", "room1", "alice", &short); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	// An hour later a sweep snapshot would flag claw as expired. Before the
	// removal lands, the grant is refreshed.
	now = base.Add(time.Hour)
	snap := r.snapshot()
	if len(snap) != 1 || !snap[0].Expired(now) {
		t.Fatalf("snapshot = %v, want one expired invitation", snap)
	}

	d := 2 * time.Hour
	if _, err := r.Invite(ctx, "claw", "t1", "room1", "bob", &d); err != nil {
		t.Fatalf("refresh Invite: %v", err)
	}

	if r.removeIfDefunct(ctx, "claw", "t1", 0) {
		t.Error("removal must re-check: a refreshed grant is not defunct")
	}
	if !r.IsInvited("claw", "t1") {
		t.Error("refreshed invitation must survive the sweep")
	}

	// Once the refreshed expiry actually passes, removal goes through.
	now = base.Add(4 * time.Hour)
	if !r.removeIfDefunct(ctx, "claw", "t1", 0) {
		t.Error("expired invitation should be removed")
	}
	if r.IsInvited("claw", "t1") {
		t.Error("expired invitation still present after removal")
	}
}
