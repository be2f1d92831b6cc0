package gateway

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"chatwidget/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryPolicy bounds the coordinator's retry behavior.
type RetryPolicy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	ProbeInterval time.Duration
}

// DefaultRetryPolicy mirrors the configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BaseDelay:     250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		ProbeInterval: 10 * time.Second,
	}
}

// Coordinator wraps a Gateway with timeout-aware retries, exponential
// backoff with jitter, and connection-status tracking. Transient failures
// are retried up to the bounded count; validation and auth rejections are
// not. An auth rejection triggers a single token-refresh-and-retry before
// surfacing as fatal. After retries are exhausted the status flips to
// disconnected and a background probe works toward reconnection.
type Coordinator struct {
	inner  Gateway
	policy RetryPolicy
	logger *zap.Logger

	status   atomic.Value // models.ConnectionStatus
	onStatus func(models.ConnectionStatus)
	statusMu sync.Mutex

	probing   int32
	probeDone chan struct{}
}

func NewCoordinator(inner Gateway, policy RetryPolicy, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		inner:     inner,
		policy:    policy,
		logger:    logger,
		probeDone: make(chan struct{}),
	}
	c.status.Store(models.StatusReconnecting)
	return c
}

// Status returns the current connection status.
func (c *Coordinator) Status() models.ConnectionStatus {
	return c.status.Load().(models.ConnectionStatus)
}

// OnStatusChange registers a callback invoked whenever the connection
// status changes. Only one callback is supported; the orchestrator fans
// out to its subscribers.
func (c *Coordinator) OnStatusChange(fn func(models.ConnectionStatus)) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.onStatus = fn
}

// Close stops the background reconnection probe, if running.
func (c *Coordinator) Close() {
	close(c.probeDone)
}

func (c *Coordinator) setStatus(s models.ConnectionStatus) {
	if c.status.Swap(s) == s {
		return
	}
	c.statusMu.Lock()
	fn := c.onStatus
	c.statusMu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// backoffDelay computes the delay before retry n (0-based) with full
// jitter, capped at MaxDelay.
func (c *Coordinator) backoffDelay(attempt int) time.Duration {
	delay := c.policy.BaseDelay << uint(attempt)
	if delay > c.policy.MaxDelay || delay <= 0 {
		delay = c.policy.MaxDelay
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// do runs one gateway operation under the retry policy.
func (c *Coordinator) do(ctx context.Context, op string, fn func(context.Context) error) error {
	refreshed := false
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			c.setStatus(models.StatusConnected)
			return nil
		}

		if IsAuth(err) && !refreshed {
			refreshed = true
			c.logger.Warn("auth rejection, refreshing token once", zap.String("op", op))
			if _, rerr := c.inner.RefreshToken(ctx); rerr != nil {
				return rerr
			}
			continue
		}

		if !IsTransient(err) {
			return err
		}

		if attempt >= c.policy.MaxRetries {
			c.logger.Error("gateway retries exhausted",
				zap.String("op", op), zap.Int("attempts", attempt+1), zap.Error(err))
			c.setStatus(models.StatusDisconnected)
			c.startProbe()
			return err
		}

		delay := c.backoffDelay(attempt)
		c.logger.Debug("transient gateway failure, backing off",
			zap.String("op", op), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return NewNetworkError(op, ctx.Err())
		}
	}
}

// startProbe launches the single background reconnection loop.
func (c *Coordinator) startProbe() {
	if !atomic.CompareAndSwapInt32(&c.probing, 0, 1) {
		return
	}
	go func() {
		defer atomic.StoreInt32(&c.probing, 0)
		limiter := rate.NewLimiter(rate.Every(c.policy.ProbeInterval), 1)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-c.probeDone
			cancel()
		}()

		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			c.setStatus(models.StatusReconnecting)
			if _, err := c.inner.RefreshToken(ctx); err == nil {
				c.setStatus(models.StatusConnected)
				return
			}
			c.setStatus(models.StatusDisconnected)
		}
	}()
}

// Gateway implementation: every call goes through do().

func (c *Coordinator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	var token string
	err := c.do(ctx, "authenticate", func(ctx context.Context) error {
		var err error
		token, err = c.inner.Authenticate(ctx, apiKey)
		return err
	})
	return token, err
}

func (c *Coordinator) RefreshToken(ctx context.Context) (string, error) {
	var token string
	err := c.do(ctx, "refreshToken", func(ctx context.Context) error {
		var err error
		token, err = c.inner.RefreshToken(ctx)
		return err
	})
	return token, err
}

func (c *Coordinator) InitializeSession(ctx context.Context) (*SessionData, error) {
	var out *SessionData
	err := c.do(ctx, "initializeSession", func(ctx context.Context) error {
		var err error
		out, err = c.inner.InitializeSession(ctx)
		return err
	})
	return out, err
}

func (c *Coordinator) SendChatMessage(ctx context.Context, text, sessionID string) (*ChatResponse, error) {
	var out *ChatResponse
	err := c.do(ctx, "sendChatMessage", func(ctx context.Context) error {
		var err error
		out, err = c.inner.SendChatMessage(ctx, text, sessionID)
		return err
	})
	return out, err
}

func (c *Coordinator) GetAvailableSlots(ctx context.Context, date, serviceType string) ([]models.TimeSlot, error) {
	var out []models.TimeSlot
	err := c.do(ctx, "getAvailableSlots", func(ctx context.Context) error {
		var err error
		out, err = c.inner.GetAvailableSlots(ctx, date, serviceType)
		return err
	})
	return out, err
}

func (c *Coordinator) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	var out *models.BookingResult
	err := c.do(ctx, "createBooking", func(ctx context.Context) error {
		var err error
		out, err = c.inner.CreateBooking(ctx, req)
		return err
	})
	return out, err
}

func (c *Coordinator) UpdateBooking(ctx context.Context, bookingID string, patch models.BookingRequest) (*models.BookingResult, error) {
	var out *models.BookingResult
	err := c.do(ctx, "updateBooking", func(ctx context.Context) error {
		var err error
		out, err = c.inner.UpdateBooking(ctx, bookingID, patch)
		return err
	})
	return out, err
}

func (c *Coordinator) CancelBooking(ctx context.Context, bookingID string) error {
	return c.do(ctx, "cancelBooking", func(ctx context.Context) error {
		return c.inner.CancelBooking(ctx, bookingID)
	})
}

func (c *Coordinator) ProcessVoiceInput(ctx context.Context, audio []byte) (*VoiceResult, error) {
	var out *VoiceResult
	err := c.do(ctx, "processVoiceInput", func(ctx context.Context) error {
		var err error
		out, err = c.inner.ProcessVoiceInput(ctx, audio)
		return err
	})
	return out, err
}

func (c *Coordinator) TrackEvent(ctx context.Context, event models.AnalyticsEvent) error {
	return c.do(ctx, "trackEvent", func(ctx context.Context) error {
		return c.inner.TrackEvent(ctx, event)
	})
}

var _ Gateway = (*Coordinator)(nil)
var _ Gateway = (*APIGateway)(nil)
