// Package session tracks per-conversation state: who the customer is,
// which order is under discussion, and which provider is active. It
// also owns the argument-enrichment policy that fills known context
// into tool calls the model left incomplete.
package session

import (
	"sync"
	"time"
)

// Provider slots a session can be bound to. Switching to the fallback
// is one-way within a session; only Reset returns to the primary.
const (
	ProviderPrimary  = "primary"
	ProviderFallback = "fallback"
)

// Session is the mutable state of one conversation.
//
// A session is a single-writer resource: exactly one goroutine (the
// connection's read loop) drives it. The Manager guards only its own
// map; Session fields need no locking.
type Session struct {
	ID             string
	ActiveProvider string
	CustomerEmail  string
	CustomerName   string

	// CurrentOrder is the order reference most recently seen in the
	// user's messages, uppercased. Used to auto-fill order-dependent
	// tool calls.
	CurrentOrder string

	// TurnCount counts user messages handled in this session.
	TurnCount int

	// ToolsUsed accumulates tool names across the whole session.
	ToolsUsed []string

	CreatedAt time.Time
}

// New creates a session bound to the primary provider.
func New(id string) *Session {
	return &Session{
		ID:             id,
		ActiveProvider: ProviderPrimary,
		CreatedAt:      time.Now(),
	}
}

// Reset clears conversation-scoped state: order context, turn counter,
// tool history, and the provider binding. Identity (email, name) is
// kept; the customer did not log out, the conversation restarted.
func (s *Session) Reset() {
	s.ActiveProvider = ProviderPrimary
	s.CurrentOrder = ""
	s.TurnCount = 0
	s.ToolsUsed = nil
}

// Manager is a concurrency-safe session registry keyed by session id.
// It replaces ambient per-connection globals: every lookup is explicit.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it on first use.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := New(id)
	m.sessions[id] = s
	return s
}

// Get returns the session for id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove drops a session from the registry.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
