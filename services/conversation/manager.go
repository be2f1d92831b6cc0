package conversation

import (
	"context"
	"sync"
	"time"

	"chatwidget/models"
	"chatwidget/services/gateway"
	"chatwidget/services/session"

	"go.uber.org/zap"
)

// Deps carries everything an orchestrator needs besides its config.
type Deps struct {
	Store   session.Store
	Gateway gateway.Gateway
	History BookingHistory
	Tracker Tracker
	Logger  *zap.Logger
}

// Manager hands out one orchestrator per widget session id and reaps them
// on release. Handlers resolve their orchestrator through it.
type Manager struct {
	cfg  Config
	deps Deps

	mu     sync.Mutex
	active map[string]*Orchestrator
}

func NewManager(cfg Config, deps Deps) *Manager {
	return &Manager{
		cfg:    cfg,
		deps:   deps,
		active: make(map[string]*Orchestrator),
	}
}

// Acquire starts (or resumes) the orchestrator for the given session id.
// A stored id with no live orchestrator, as after an engine restart, is
// resumed from the session store with its transcript intact; an empty
// or unknown id gets a fresh gateway-issued session.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*Orchestrator, *models.ConversationSession, error) {
	m.mu.Lock()
	if sessionID != "" {
		if o, ok := m.active[sessionID]; ok {
			m.mu.Unlock()
			sess, err := o.Session(ctx)
			return o, sess, err
		}
	}
	m.mu.Unlock()

	o := NewOrchestrator(m.cfg, m.deps.Store, m.deps.Gateway, m.deps.History, m.deps.Tracker, m.deps.Logger)
	sess, err := o.Start(ctx, sessionID)
	if err != nil {
		o.Close()
		return nil, nil, err
	}

	m.mu.Lock()
	if existing, ok := m.active[sess.SessionID]; ok {
		m.mu.Unlock()
		o.Close()
		existingSess, gerr := existing.Session(ctx)
		return existing, existingSess, gerr
	}
	m.active[sess.SessionID] = o
	m.mu.Unlock()
	return o, sess, nil
}

// Lookup returns the live orchestrator for a session id, if any.
func (m *Manager) Lookup(sessionID string) (*Orchestrator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.active[sessionID]
	return o, ok
}

// Release stops the orchestrator for a session id and forgets it. The
// stored session survives so the widget can resume later.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	o, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()
	if ok {
		o.Close()
	}
}

// ReapIdle releases orchestrators whose sessions are gone, inactive, or
// past maxIdle. Stored transcripts survive the release, so a reaped
// session can still be resumed through Acquire. Returns the number of
// orchestrators released.
func (m *Manager) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	m.mu.Lock()
	candidates := make(map[string]*Orchestrator, len(m.active))
	for id, o := range m.active {
		candidates[id] = o
	}
	m.mu.Unlock()

	reaped := 0
	for id, o := range candidates {
		sess, err := o.Session(ctx)
		if err == nil && sess.IsActive && time.Since(sess.LastActivity) < maxIdle {
			continue
		}
		m.Release(id)
		reaped++
	}
	return reaped
}

// Rebind moves an orchestrator to a new session id after recreation.
func (m *Manager) Rebind(oldID, newID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.active[oldID]; ok {
		delete(m.active, oldID)
		m.active[newID] = o
	}
}

// Shutdown closes every live orchestrator.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	orchestrators := make([]*Orchestrator, 0, len(m.active))
	for _, o := range m.active {
		orchestrators = append(orchestrators, o)
	}
	m.active = make(map[string]*Orchestrator)
	m.mu.Unlock()
	for _, o := range orchestrators {
		o.Close()
	}
}
