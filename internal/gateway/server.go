// Package gateway serves the ops surface: a WebSocket event stream of
// decisions, dispatches, and invitation changes, plus a small HTTP API
// for inspecting invitations and cursors.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/config"
	"github.com/nextlevelbuilder/threadclaw/internal/invite"
	"github.com/nextlevelbuilder/threadclaw/internal/track"
)

// Server is the ops gateway handling WebSocket and HTTP connections.
type Server struct {
	cfg      *config.Config
	eventPub bus.EventPublisher
	registry *invite.Registry
	tracker  *track.Tracker

	upgrader websocket.Upgrader
	clients  map[string]*client
	mu       sync.RWMutex

	httpServer *http.Server
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan bus.Event
	// done stops the writer goroutine. send is never closed: an event
	// broadcast snapshots handlers outside the bus lock, so a handler can
	// fire after unregistration and must find a live channel.
	done chan struct{}
}

// NewServer creates the ops gateway.
func NewServer(cfg *config.Config, eventPub bus.EventPublisher, registry *invite.Registry, tracker *track.Tracker) *Server {
	s := &Server{
		cfg:      cfg,
		eventPub: eventPub,
		registry: registry,
		tracker:  tracker,
		clients:  make(map[string]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return s
}

// Start listens until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/invites", s.handleInvites)
	mux.HandleFunc("/v1/cursors", s.handleCursors)

	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	slog.Info("ops gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("ops gateway: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan bus.Event, 64),
		done: make(chan struct{}),
	}
	s.registerClient(c)
	defer func() {
		s.unregisterClient(c)
		conn.Close()
	}()

	go func() {
		for {
			select {
			case event := <-c.send:
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	// Drain reads so pings and close frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) registerClient(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.eventPub.Subscribe(c.id, func(event bus.Event) {
		select {
		case c.send <- event:
		default: // slow client, drop
		}
	})
	slog.Info("ops client connected", "id", c.id)
}

func (s *Server) unregisterClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()

	s.eventPub.Unsubscribe(c.id)
	close(c.done)
	slog.Info("ops client disconnected", "id", c.id)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleInvites lists invitations for ?thread=<id>.
func (s *Server) handleInvites(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread")
	if threadID == "" {
		http.Error(w, `{"error":"thread query parameter required"}`, http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.ListInvites(threadID))
}

// handleCursors reports the dispatch cursor for ?agent=<name>.
func (s *Server) handleCursors(w http.ResponseWriter, r *http.Request) {
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		http.Error(w, `{"error":"agent query parameter required"}`, http.StatusBadRequest)
		return
	}
	cur, ok := s.tracker.Cursor(agent)
	if !ok {
		http.Error(w, `{"error":"no cursor for agent"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cur)
}
