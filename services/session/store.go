// Package session owns ConversationSession state. All mutations are
// serialized per session id so concurrent user and server events can never
// interleave context updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatwidget/models"
)

// ErrNotFound is returned when no session exists under the given id.
var ErrNotFound = errors.New("session not found")

// ExpiredError is returned for mutations against a session whose idle
// timeout has elapsed. Recoverable by session recreation.
type ExpiredError struct {
	SessionID string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("session %s has expired", e.SessionID)
}

// ContextPatch is a partial update to a session's ConversationContext.
// Nil fields are left untouched; ClearBooking discards the draft.
type ContextPatch struct {
	CustomerInfo      *models.CustomerInfo
	CurrentIntent     *models.Intent
	BookingInProgress *models.BookingDraft
	ClearBooking      bool
	PreviousBookings  []models.BookingReference
}

// Store is the single source of truth for conversation sessions.
type Store interface {
	// Get returns a clone of the stored session. A session idle past the
	// timeout is marked inactive before being returned.
	Get(ctx context.Context, sessionID string) (*models.ConversationSession, error)
	// CreateOrResume resumes an active stored session or creates a fresh
	// one under the given (server-issued) id.
	CreateOrResume(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error)
	AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error
	UpdateContext(ctx context.Context, sessionID string, patch ContextPatch) error
	Touch(ctx context.Context, sessionID string) error
	Expire(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
}

// applyPatch merges a ContextPatch into a session in place.
func applyPatch(s *models.ConversationSession, patch ContextPatch) {
	if patch.CustomerInfo != nil {
		merged := s.Context.CustomerInfo
		if patch.CustomerInfo.Name != "" {
			merged.Name = patch.CustomerInfo.Name
		}
		if patch.CustomerInfo.Email != "" {
			merged.Email = patch.CustomerInfo.Email
		}
		if patch.CustomerInfo.Phone != "" {
			merged.Phone = patch.CustomerInfo.Phone
		}
		if patch.CustomerInfo.Company != "" {
			merged.Company = patch.CustomerInfo.Company
		}
		if patch.CustomerInfo.Timezone != "" {
			merged.Timezone = patch.CustomerInfo.Timezone
		}
		s.Context.CustomerInfo = merged
	}
	if patch.CurrentIntent != nil {
		s.Context.CurrentIntent = *patch.CurrentIntent
	}
	if patch.ClearBooking {
		s.Context.BookingInProgress = nil
	} else if patch.BookingInProgress != nil {
		draft := *patch.BookingInProgress
		s.Context.BookingInProgress = &draft
	}
	if patch.PreviousBookings != nil {
		s.Context.PreviousBookings = patch.PreviousBookings
	}
}

// keyedMutex serializes work per session id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func isIdleExpired(s *models.ConversationSession, idleTimeout time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivity) > idleTimeout
}
