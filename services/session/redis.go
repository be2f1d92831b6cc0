package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chatwidget/models"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "chat:session:"

// Sessions are retained past the idle timeout so an expired transcript can
// still seed a transparently recreated session.
const sessionRetention = 24 * time.Hour

// RedisStore persists sessions as JSON in Redis. Per-session serialization
// uses process-local keyed locks; a single engine process owns a session.
type RedisStore struct {
	client      *redis.Client
	idleTimeout time.Duration
	locks       *keyedMutex
	now         func() time.Time
}

func NewRedisStore(client *redis.Client, idleTimeout time.Duration) *RedisStore {
	return &RedisStore{
		client:      client,
		idleTimeout: idleTimeout,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsActive && isIdleExpired(sess, s.idleTimeout, s.now()) {
		sess.IsActive = false
		if err := s.save(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func (s *RedisStore) CreateOrResume(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	now := s.now()
	if sess, err := s.load(ctx, sessionID); err == nil {
		if sess.IsActive && !isIdleExpired(sess, s.idleTimeout, now) {
			sess.LastActivity = now
			if err := s.save(ctx, sess); err != nil {
				return nil, err
			}
			return sess, nil
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
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	return s.mutate(ctx, sessionID, func(sess *models.ConversationSession) {
		sess.Messages = append(sess.Messages, msg)
		sess.LastActivity = s.now()
	})
}

func (s *RedisStore) UpdateContext(ctx context.Context, sessionID string, patch ContextPatch) error {
	return s.mutate(ctx, sessionID, func(sess *models.ConversationSession) {
		applyPatch(sess, patch)
	})
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	return s.mutate(ctx, sessionID, func(sess *models.ConversationSession) {
		sess.LastActivity = s.now()
	})
}

func (s *RedisStore) Expire(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.IsActive = false
	return s.save(ctx, sess)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()
	return s.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

func (s *RedisStore) mutate(ctx context.Context, sessionID string, fn func(*models.ConversationSession)) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.IsActive || isIdleExpired(sess, s.idleTimeout, s.now()) {
		if sess.IsActive {
			sess.IsActive = false
			if err := s.save(ctx, sess); err != nil {
				return err
			}
		}
		return &ExpiredError{SessionID: sessionID}
	}
	fn(sess)
	return s.save(ctx, sess)
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess models.ConversationSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *models.ConversationSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.SessionID, data, sessionRetention).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
