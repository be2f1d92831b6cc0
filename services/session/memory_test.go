package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatwidget/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedStore(idle time.Duration) (*InMemoryStore, *time.Time) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	s := NewInMemoryStore(idle)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestCreateOrResumeFreshSession(t *testing.T) {
	s, _ := newClockedStore(30 * time.Minute)

	sess, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.True(t, sess.IsActive)
	assert.Equal(t, models.IntentNone, sess.Context.CurrentIntent)
	assert.Empty(t, sess.Messages)
}

func TestGetReturnsClone(t *testing.T) {
	s, _ := newClockedStore(30 * time.Minute)
	_, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)

	first, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	first.Messages = append(first.Messages, models.ChatMessage{Content: "local only"})
	first.Context.CustomerInfo.Name = "local only"

	second, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, second.Messages)
	assert.Empty(t, second.Context.CustomerInfo.Name)
}

func TestGetMissingSession(t *testing.T) {
	s, _ := newClockedStore(30 * time.Minute)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIdleExpiryMarksInactive(t *testing.T) {
	s, now := newClockedStore(30 * time.Minute)
	_, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)

	*now = now.Add(31 * time.Minute)

	sess, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, sess.IsActive)

	// Mutations against an expired session are rejected.
	err = s.AppendMessage(context.Background(), "s1", models.ChatMessage{Content: "late"})
	var expired *ExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, "s1", expired.SessionID)
}

func TestActivityDefersExpiry(t *testing.T) {
	s, now := newClockedStore(30 * time.Minute)
	_, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)

	*now = now.Add(20 * time.Minute)
	require.NoError(t, s.Touch(context.Background(), "s1"))
	*now = now.Add(20 * time.Minute)

	sess, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, sess.IsActive)
}

func TestCreateOrResumeReplacesExpired(t *testing.T) {
	s, now := newClockedStore(30 * time.Minute)
	_, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(context.Background(), "s1", models.ChatMessage{Content: "hello"}))

	*now = now.Add(time.Hour)

	sess, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.True(t, sess.IsActive)
	assert.Empty(t, sess.Messages)
}

func TestUpdateContextMergesCustomerInfo(t *testing.T) {
	s, _ := newClockedStore(30 * time.Minute)
	_, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)

	require.NoError(t, s.UpdateContext(context.Background(), "s1", ContextPatch{
		CustomerInfo: &models.CustomerInfo{Name: "Ada Lovelace", Email: "ada@example.com"},
	}))
	// A later partial patch must not blank the earlier fields.
	require.NoError(t, s.UpdateContext(context.Background(), "s1", ContextPatch{
		CustomerInfo: &models.CustomerInfo{Phone: "+1 555 010 2030"},
	}))

	sess, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", sess.Context.CustomerInfo.Name)
	assert.Equal(t, "ada@example.com", sess.Context.CustomerInfo.Email)
	assert.Equal(t, "+1 555 010 2030", sess.Context.CustomerInfo.Phone)
}

func TestClearBookingBeatsDraftPatch(t *testing.T) {
	s, _ := newClockedStore(30 * time.Minute)
	_, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)

	draft := models.BookingDraft{ServiceType: "consultation"}
	require.NoError(t, s.UpdateContext(context.Background(), "s1", ContextPatch{BookingInProgress: &draft}))
	require.NoError(t, s.UpdateContext(context.Background(), "s1", ContextPatch{
		ClearBooking:      true,
		BookingInProgress: &draft,
	}))

	sess, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, sess.Context.BookingInProgress)
}

func TestConcurrentAppendsAllLand(t *testing.T) {
	s, _ := newClockedStore(30 * time.Minute)
	_, err := s.CreateOrResume(context.Background(), "s1", "u1")
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_ = s.AppendMessage(context.Background(), "s1", models.ChatMessage{Content: "m"})
		}()
	}
	wg.Wait()

	sess, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, writers)
}
