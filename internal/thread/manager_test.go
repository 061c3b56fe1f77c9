package thread

import (
	"context"
	"reflect"
	"testing"

	"github.com/nextlevelbuilder/threadclaw/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Stores) {
	t.Helper()
	stores := store.NewMemoryStores().Stores()
	m, err := NewManager(context.Background(), stores.Threads)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, stores
}

func TestRecordParticipationOrder(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.RecordParticipation(ctx, "t1", "room1", "scout")
	m.RecordParticipation(ctx, "t1", "room1", "claw")
	m.RecordParticipation(ctx, "t1", "room1", "scout") // repeat, no reorder
	m.RecordParticipation(ctx, "t1", "room1", "archivist")

	got := m.Participants("t1")
	want := []string{"scout", "claw", "archivist"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Participants = %v, want first-appearance order %v", got, want)
	}
}

func TestParticipantsScopedToThread(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.RecordParticipation(ctx, "t1", "room1", "claw")

	if got := m.Participants("t2"); got != nil {
		t.Errorf("Participants(t2) = %v, want nil for an unseen thread", got)
	}
}

func TestParticipantsReturnsCopy(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.RecordParticipation(ctx, "t1", "room1", "claw")

	got := m.Participants("t1")
	got[0] = "mutated"

	if fresh := m.Participants("t1"); fresh[0] != "claw" {
		t.Error("caller mutation leaked into the manager's state")
	}
}

func TestManagerReloadsPersistedState(t *testing.T) {
	stores := store.NewMemoryStores().Stores()
	ctx := context.Background()

	m1, err := NewManager(ctx, stores.Threads)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m1.RecordParticipation(ctx, "t1", "room1", "scout")
	m1.RecordParticipation(ctx, "t1", "room1", "claw")

	m2, err := NewManager(ctx, stores.Threads)
	if err != nil {
		t.Fatalf("NewManager after restart: %v", err)
	}
	got := m2.Participants("t1")
	want := []string{"scout", "claw"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Participants after restart = %v, want %v", got, want)
	}

	st, ok := m2.Get("t1")
	if !ok || st.RoomID != "room1" {
		t.Errorf("Get(t1) = %+v, %v; want room1 state", st, ok)
	}
}
