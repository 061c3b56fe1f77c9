// Package routing holds the external routing collaborator used when a
// message arrives in a thread no agent has participated in yet.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
)

// ThreadContext is the thread summary handed to a suggester.
type ThreadContext struct {
	ThreadID string   `json:"thread_id"`
	RoomID   string   `json:"room_id"`
	History  []string `json:"history,omitempty"` // recent message bodies, oldest first
}

// Suggester proposes a single best agent for a message in a thread with no
// participants. Treated as unreliable: callers wrap every failure, timeout,
// or empty answer into a no-response decision.
type Suggester interface {
	Suggest(ctx context.Context, msg bus.Message, candidates []string, threadCtx ThreadContext) (string, error)
}

// DefaultTimeout bounds one suggestion call.
const DefaultTimeout = 5 * time.Second

// HTTPSuggester calls an external routing service over HTTP JSON.
type HTTPSuggester struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPSuggester creates a suggester posting to the given endpoint.
func NewHTTPSuggester(url string) *HTTPSuggester {
	return &HTTPSuggester{
		URL:     url,
		Client:  &http.Client{},
		Timeout: DefaultTimeout,
	}
}

type suggestRequest struct {
	Message    string        `json:"message"`
	Sender     string        `json:"sender"`
	Candidates []string      `json:"candidates"`
	Thread     ThreadContext `json:"thread"`
}

type suggestResponse struct {
	Agent string `json:"agent"`
}

// Suggest posts the message and candidate set, returning the suggested
// agent name or "" when the service has no suggestion.
func (s *HTTPSuggester) Suggest(ctx context.Context, msg bus.Message, candidates []string, threadCtx ThreadContext) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(suggestRequest{
		Message:    msg.Body,
		Sender:     msg.Sender,
		Candidates: candidates,
		Thread:     threadCtx,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("routing service returned %s", resp.Status)
	}

	var out suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Agent, nil
}

// NoneSuggester always suggests nothing. Used when no routing service is
// configured.
type NoneSuggester struct{}

func (NoneSuggester) Suggest(context.Context, bus.Message, []string, ThreadContext) (string, error) {
	return "", nil
}
