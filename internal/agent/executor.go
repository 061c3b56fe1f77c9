package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/threadclaw/internal/decision"
)

// HTTPExecutor forwards execution requests to an external agent runtime
// over HTTP JSON. The runtime owns models, prompts, and tools; this side
// only carries the decision context across.
type HTTPExecutor struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPExecutor creates an executor posting to the given endpoint.
func NewHTTPExecutor(url string, timeout time.Duration) *HTTPExecutor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPExecutor{URL: url, Client: &http.Client{}, Timeout: timeout}
}

type executeRequest struct {
	Agent    string            `json:"agent"`
	Message  string            `json:"message"`
	Sender   string            `json:"sender"`
	RoomID   string            `json:"room_id"`
	ThreadID string            `json:"thread_id,omitempty"`
	Mode     decision.Mode     `json:"mode"`
	TeamMode decision.TeamMode `json:"team_mode,omitempty"`
	Team     []string          `json:"team,omitempty"`
}

type executeResponse struct {
	Reply string `json:"reply"`
}

// Execute posts the request and returns the runtime's reply text.
func (e *HTTPExecutor) Execute(ctx context.Context, req ExecuteRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	body, err := json.Marshal(executeRequest{
		Agent:    req.Agent,
		Message:  req.Message.Body,
		Sender:   req.Message.Sender,
		RoomID:   req.Message.RoomID,
		ThreadID: req.Message.ThreadID,
		Mode:     req.Decision.Mode,
		TeamMode: req.Decision.TeamMode,
		Team:     req.Team,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent runtime returned %s", resp.Status)
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// EchoExecutor is the built-in placeholder runtime used when no external
// executor is configured. Useful for wiring checks and local mode.
type EchoExecutor struct{}

func (EchoExecutor) Execute(_ context.Context, req ExecuteRequest) (string, error) {
	if req.Decision.Mode == decision.ModeTeam {
		return fmt.Sprintf("[%s, %s of %d] %s", req.Agent, req.Decision.TeamMode, len(req.Team), req.Message.Body), nil
	}
	return fmt.Sprintf("[%s] %s", req.Agent, req.Message.Body), nil
}
