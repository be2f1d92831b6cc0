// Package gateway defines the backend capability surface the engine
// consumes, its normalized error taxonomy, and the retry coordinator that
// wraps every call.
package gateway

import (
	"context"
	"time"

	"chatwidget/models"
)

// SessionData is the gateway's answer to session initialization.
type SessionData struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ChatResponse carries the assistant reply plus any booking-intent signal
// the backend extracted from the exchange.
type ChatResponse struct {
	Message         models.ChatMessage `json:"message"`
	SessionID       string             `json:"sessionId"`
	Intent          models.Intent      `json:"intent,omitempty"`
	ExtractedFields map[string]string  `json:"extractedFields,omitempty"`
}

// VoiceResult is the transcription of an opaque audio clip.
type VoiceResult struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// Gateway is the single async capability surface the engine talks to.
// Every call may fail with a normalized error from this package; callers
// behind the Coordinator never see raw transport errors.
type Gateway interface {
	Authenticate(ctx context.Context, apiKey string) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	InitializeSession(ctx context.Context) (*SessionData, error)
	SendChatMessage(ctx context.Context, text, sessionID string) (*ChatResponse, error)
	GetAvailableSlots(ctx context.Context, date, serviceType string) ([]models.TimeSlot, error)
	CreateBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error)
	UpdateBooking(ctx context.Context, bookingID string, patch models.BookingRequest) (*models.BookingResult, error)
	CancelBooking(ctx context.Context, bookingID string) error
	ProcessVoiceInput(ctx context.Context, audio []byte) (*VoiceResult, error)
	TrackEvent(ctx context.Context, event models.AnalyticsEvent) error
}
