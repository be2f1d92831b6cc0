package session

import (
	"context"
	"sync"
	"time"

	"chatwidget/models"
)

// InMemoryStore keeps sessions in a process-local map. Suited for tests
// and single-process embedding; production uses the Redis store.
type InMemoryStore struct {
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*models.ConversationSession
	locks    *keyedMutex
}

func NewInMemoryStore(idleTimeout time.Duration) *InMemoryStore {
	return &InMemoryStore{
		idleTimeout: idleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*models.ConversationSession),
		locks:       newKeyedMutex(),
	}
}

func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsActive && isIdleExpired(sess, s.idleTimeout, s.now()) {
		sess.IsActive = false
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) CreateOrResume(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	now := s.now()
	if sess, err := s.lookup(sessionID); err == nil {
		if sess.IsActive && !isIdleExpired(sess, s.idleTimeout, now) {
			sess.LastActivity = now
			return sess.Clone(), nil
		}
	}

	sess := &models.ConversationSession{
		SessionID:    sessionID,
		UserID:       userID,
		StartTime:    now,
		LastActivity: now,
		Messages:     []models.ChatMessage{},
		Context:      models.ConversationContext{CurrentIntent: models.IntentNone},
		IsActive:     true,
	}
	s.store(sess)
	return sess.Clone(), nil
}

func (s *InMemoryStore) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	return s.mutate(sessionID, func(sess *models.ConversationSession) {
		sess.Messages = append(sess.Messages, msg)
		sess.LastActivity = s.now()
	})
}

func (s *InMemoryStore) UpdateContext(ctx context.Context, sessionID string, patch ContextPatch) error {
	return s.mutate(sessionID, func(sess *models.ConversationSession) {
		applyPatch(sess, patch)
	})
}

func (s *InMemoryStore) Touch(ctx context.Context, sessionID string) error {
	return s.mutate(sessionID, func(sess *models.ConversationSession) {
		sess.LastActivity = s.now()
	})
}

func (s *InMemoryStore) Expire(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.IsActive = false
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// mutate applies fn under the session lock, rejecting expired or inactive
// sessions with ExpiredError.
func (s *InMemoryStore) mutate(sessionID string, fn func(*models.ConversationSession)) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	if !sess.IsActive || isIdleExpired(sess, s.idleTimeout, s.now()) {
		sess.IsActive = false
		return &ExpiredError{SessionID: sessionID}
	}
	fn(sess)
	return nil
}

func (s *InMemoryStore) lookup(sessionID string) (*models.ConversationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *InMemoryStore) store(sess *models.ConversationSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess
}

var _ Store = (*InMemoryStore)(nil)
