package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
)

func TestHTTPSuggester(t *testing.T) {
	var got suggestRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(suggestResponse{Agent: "scout"})
	}))
	defer srv.Close()

	s := NewHTTPSuggester(srv.URL)
	msg := bus.Message{ID: "m1", Sender: "alice", Body: "who owns deploys?"}
	agent, err := s.Suggest(context.Background(), msg, []string{"claw", "scout"}, ThreadContext{ThreadID: "t1", RoomID: "room1"})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if agent != "scout" {
		t.Errorf("agent = %q, want scout", agent)
	}

	if got.Message != "who owns deploys?" || got.Sender != "alice" {
		t.Errorf("request carried %+v, want the message body and sender", got)
	}
	if !reflect.DeepEqual(got.Candidates, []string{"claw", "scout"}) {
		t.Errorf("candidates = %v", got.Candidates)
	}
	if got.Thread.ThreadID != "t1" || got.Thread.RoomID != "room1" {
		t.Errorf("thread context = %+v", got.Thread)
	}
}

func TestHTTPSuggesterNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPSuggester(srv.URL)
	if _, err := s.Suggest(context.Background(), bus.Message{}, nil, ThreadContext{}); err == nil {
		t.Error("want an error for a non-200 response")
	}
}

func TestHTTPSuggesterTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	s := NewHTTPSuggester(srv.URL)
	s.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := s.Suggest(context.Background(), bus.Message{}, nil, ThreadContext{})
	if err == nil {
		t.Fatal("want a timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timed out after %v, the configured deadline is 50ms", elapsed)
	}
}

func TestNoneSuggester(t *testing.T) {
	agent, err := NoneSuggester{}.Suggest(context.Background(), bus.Message{}, []string{"claw"}, ThreadContext{})
	if err != nil || agent != "" {
		t.Errorf("NoneSuggester = (%q, %v), want empty and nil", agent, err)
	}
}
