// Package api exposes the WebSocket chat endpoint and the health
// endpoint. Each connection owns a read loop that drives the agent;
// all writes to a connection happen from that loop, so frames never
// interleave.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bookly/bookly-support/internal/agent"
	"github.com/bookly/bookly-support/internal/analytics"
	"github.com/bookly/bookly-support/internal/buildinfo"
	"github.com/bookly/bookly-support/internal/session"
	"github.com/bookly/bookly-support/internal/store"
)

const shutdownTimeout = 5 * time.Second

// inboundFrame is a client-to-server message. user_email and user_name
// may ride on both set_user and message frames; a message frame
// carrying them updates the session before the turn runs.
type inboundFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// Server hosts the chat transport.
type Server struct {
	addr      string
	agent     *agent.Agent
	backend   *store.Store
	sessions  *session.Manager
	analytics *analytics.Collector
	logger    *slog.Logger

	upgrader websocket.Upgrader

	mu        sync.Mutex
	histories map[string]*agent.History
}

// New creates a Server listening on addr.
func New(addr string, ag *agent.Agent, backend *store.Store, sessions *session.Manager, collector *analytics.Collector, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		agent:     ag,
		backend:   backend,
		sessions:  sessions,
		analytics: collector,
		logger:    logger.With("component", "api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The chat widget is served from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		histories: make(map[string]*agent.History),
	}
}

// Handler returns the HTTP handler, exported for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/chat/{session_id}", s.handleChat)
	mux.HandleFunc("GET /ws/chat", s.handleChat)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"active_sessions": s.sessions.Count(),
		"build":           buildinfo.Info(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := s.sessions.GetOrCreate(sessionID)
	history := s.historyFor(sessionID)
	logger := s.logger.With("session_id", sessionID)
	logger.Info("client connected", "remote", conn.RemoteAddr().String())

	s.analytics.TrackConversationStart(sessionID, sess.CustomerEmail)
	s.analytics.TrackEvent("conversation_started", sessionID, sess.CustomerEmail, nil)

	send := func(frame map[string]any) error {
		return conn.WriteJSON(frame)
	}

	if err := send(map[string]any{
		"type":       "connected",
		"message":    "Connected to Bookly Support",
		"session_id": sessionID,
	}); err != nil {
		return
	}
	send(map[string]any{"type": "message", "content": agent.Greeting(sess)})

	defer func() {
		logger.Info("client disconnected")
		s.analytics.TrackConversationEnd(sessionID)
		s.analytics.TrackEvent("conversation_ended", sessionID, sess.CustomerEmail, nil)
		s.sessions.Remove(sessionID)
		s.dropHistory(sessionID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("read failed", "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			send(map[string]any{"type": "error", "message": "Invalid message format."})
			continue
		}

		switch frame.Type {
		case "ping":
			send(map[string]any{"type": "pong"})

		case "set_user":
			sess.CustomerEmail = frame.UserEmail
			sess.CustomerName = frame.UserName
			send(map[string]any{"type": "user_set", "user_email": frame.UserEmail, "user_name": frame.UserName})

		case "reset":
			sess.Reset()
			history.Clear()
			send(map[string]any{"type": "reset_done"})
			send(map[string]any{"type": "message", "content": agent.Greeting(sess)})

		case "message":
			if frame.Content == "" {
				send(map[string]any{"type": "error", "message": "Empty message."})
				continue
			}
			if frame.UserEmail != "" {
				sess.CustomerEmail = frame.UserEmail
			}
			if frame.UserName != "" {
				sess.CustomerName = frame.UserName
			}
			s.handleUserMessage(r.Context(), conn, sess, history, frame.Content, logger)

		default:
			send(map[string]any{"type": "error", "message": fmt.Sprintf("Unknown message type: %s", frame.Type)})
		}
	}
}

// handleUserMessage runs one turn and relays chunks as frames. Exactly
// one terminal frame is sent: message_complete or error.
func (s *Server) handleUserMessage(ctx context.Context, conn *websocket.Conn, sess *session.Session, history *agent.History, text string, logger *slog.Logger) {
	conn.WriteJSON(map[string]any{"type": "typing", "is_typing": true})

	failed := false
	emit := func(c agent.Chunk) {
		var frame map[string]any
		switch c.Type {
		case agent.ChunkContent:
			frame = map[string]any{"type": "stream", "content": c.Content}
		case agent.ChunkToolUse:
			frame = map[string]any{"type": "tool_use", "tool": c.ToolName}
		case agent.ChunkToolResult:
			frame = map[string]any{"type": "tool_result", "tool": c.ToolName, "result": c.Payload}
		case agent.ChunkError:
			failed = true
			frame = map[string]any{"type": "error", "message": c.Content}
		default:
			return
		}
		if err := conn.WriteJSON(frame); err != nil {
			logger.Warn("write failed", "error", err)
		}
	}

	err := s.agent.HandleMessage(ctx, sess, history, s.backend, text, emit)

	conn.WriteJSON(map[string]any{"type": "typing", "is_typing": false})
	if err != nil {
		// Context cancelled mid-turn; the connection is going away.
		return
	}
	if !failed {
		conn.WriteJSON(map[string]any{"type": "message_complete", "provider": sess.ActiveProvider})
	}
}

func (s *Server) historyFor(sessionID string) *agent.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[sessionID]
	if !ok {
		h = agent.NewHistory()
		s.histories[sessionID] = h
	}
	return h
}

func (s *Server) dropHistory(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, sessionID)
}
