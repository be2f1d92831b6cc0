package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatwidget/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// innerStub scripts the wrapped gateway per call.
type innerStub struct {
	mu           sync.Mutex
	chatCalls    int
	refreshCalls int

	chatFn    func(call int) (*ChatResponse, error)
	refreshFn func(call int) (string, error)
}

func (s *innerStub) SendChatMessage(ctx context.Context, text, sessionID string) (*ChatResponse, error) {
	s.mu.Lock()
	s.chatCalls++
	call := s.chatCalls
	s.mu.Unlock()
	return s.chatFn(call)
}

func (s *innerStub) RefreshToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.refreshCalls++
	call := s.refreshCalls
	s.mu.Unlock()
	if s.refreshFn != nil {
		return s.refreshFn(call)
	}
	return "token", nil
}

func (s *innerStub) Authenticate(ctx context.Context, apiKey string) (string, error) {
	return "token", nil
}

func (s *innerStub) InitializeSession(ctx context.Context) (*SessionData, error) {
	return &SessionData{SessionID: "s1"}, nil
}

func (s *innerStub) GetAvailableSlots(ctx context.Context, date, serviceType string) ([]models.TimeSlot, error) {
	return nil, nil
}

func (s *innerStub) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	return nil, nil
}

func (s *innerStub) UpdateBooking(ctx context.Context, bookingID string, patch models.BookingRequest) (*models.BookingResult, error) {
	return nil, nil
}

func (s *innerStub) CancelBooking(ctx context.Context, bookingID string) error { return nil }

func (s *innerStub) ProcessVoiceInput(ctx context.Context, audio []byte) (*VoiceResult, error) {
	return nil, nil
}

func (s *innerStub) TrackEvent(ctx context.Context, event models.AnalyticsEvent) error { return nil }

func (s *innerStub) counts() (chat, refresh int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatCalls, s.refreshCalls
}

var _ Gateway = (*innerStub)(nil)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		ProbeInterval: 5 * time.Millisecond,
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	inner := &innerStub{chatFn: func(call int) (*ChatResponse, error) {
		if call < 3 {
			return nil, NewNetworkError("sendChatMessage", errors.New("timeout"))
		}
		return &ChatResponse{SessionID: "s1"}, nil
	}}
	c := NewCoordinator(inner, fastPolicy(), zap.NewNop())
	defer c.Close()

	resp, err := c.SendChatMessage(context.Background(), "hi", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)

	chat, _ := inner.counts()
	assert.Equal(t, 3, chat)
	assert.Equal(t, models.StatusConnected, c.Status())
}

func TestNonTransientErrorsFailImmediately(t *testing.T) {
	ve := &models.ValidationError{Field: "customerEmail", Code: "invalid_email", Message: "bad"}
	inner := &innerStub{chatFn: func(call int) (*ChatResponse, error) {
		return nil, ve
	}}
	c := NewCoordinator(inner, fastPolicy(), zap.NewNop())
	defer c.Close()

	_, err := c.SendChatMessage(context.Background(), "hi", "s1")
	var got *models.ValidationError
	require.ErrorAs(t, err, &got)

	chat, _ := inner.counts()
	assert.Equal(t, 1, chat)
}

func TestAuthErrorRefreshesTokenOnce(t *testing.T) {
	inner := &innerStub{chatFn: func(call int) (*ChatResponse, error) {
		if call == 1 {
			return nil, NewAuthError("sendChatMessage", "token expired")
		}
		return &ChatResponse{SessionID: "s1"}, nil
	}}
	c := NewCoordinator(inner, fastPolicy(), zap.NewNop())
	defer c.Close()

	_, err := c.SendChatMessage(context.Background(), "hi", "s1")
	require.NoError(t, err)

	chat, refresh := inner.counts()
	assert.Equal(t, 2, chat)
	assert.Equal(t, 1, refresh)
}

func TestSecondAuthErrorIsFatal(t *testing.T) {
	inner := &innerStub{chatFn: func(call int) (*ChatResponse, error) {
		return nil, NewAuthError("sendChatMessage", "token expired")
	}}
	c := NewCoordinator(inner, fastPolicy(), zap.NewNop())
	defer c.Close()

	_, err := c.SendChatMessage(context.Background(), "hi", "s1")
	require.True(t, IsAuth(err))

	chat, refresh := inner.counts()
	// One refresh, one retry, then the second rejection surfaces.
	assert.Equal(t, 2, chat)
	assert.Equal(t, 1, refresh)
}

func TestExhaustionDisconnectsAndProbesBack(t *testing.T) {
	inner := &innerStub{
		chatFn: func(call int) (*ChatResponse, error) {
			return nil, NewNetworkError("sendChatMessage", errors.New("down"))
		},
		refreshFn: func(call int) (string, error) {
			if call < 2 {
				return "", NewNetworkError("refreshToken", errors.New("down"))
			}
			return "token", nil
		},
	}
	c := NewCoordinator(inner, fastPolicy(), zap.NewNop())
	defer c.Close()

	var mu sync.Mutex
	var seen []models.ConnectionStatus
	c.OnStatusChange(func(s models.ConnectionStatus) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	_, err := c.SendChatMessage(context.Background(), "hi", "s1")
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	chat, _ := inner.counts()
	assert.Equal(t, 4, chat) // initial attempt plus MaxRetries

	// The background probe recovers once RefreshToken succeeds.
	assert.Eventually(t, func() bool {
		return c.Status() == models.StatusConnected
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, models.StatusDisconnected)
	assert.Contains(t, seen, models.StatusConnected)
}

func TestContextCancelStopsBackoff(t *testing.T) {
	inner := &innerStub{chatFn: func(call int) (*ChatResponse, error) {
		return nil, NewNetworkError("sendChatMessage", errors.New("down"))
	}}
	policy := fastPolicy()
	policy.BaseDelay = time.Minute
	policy.MaxDelay = time.Minute
	c := NewCoordinator(inner, policy, zap.NewNop())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.SendChatMessage(ctx, "hi", "s1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
