package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"chatwidget/models"

	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"
)

// ChatBackend generates assistant replies. When set on the APIGateway it
// overrides the remote /chat endpoint (e.g. a direct Gemini client).
type ChatBackend interface {
	GenerateReply(ctx context.Context, text string, history []models.ChatMessage) (string, error)
}

// VoiceBackend transcribes audio clips. When set it overrides the remote
// /voice endpoint (e.g. Google Cloud Speech).
type VoiceBackend interface {
	Transcribe(ctx context.Context, audio []byte) (*VoiceResult, error)
}

// HistoryProvider supplies recent transcript context to the chat backend.
type HistoryProvider func(ctx context.Context, sessionID string) []models.ChatMessage

// APIGateway is the production Gateway implementation over the booking
// API's REST surface.
type APIGateway struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger

	Chat    ChatBackend
	Voice   VoiceBackend
	History HistoryProvider

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewAPIGateway builds a gateway against the given base URL.
func NewAPIGateway(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *APIGateway {
	return &APIGateway{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

func (g *APIGateway) endpoint(parts ...string) string {
	u, err := url.Parse(g.BaseURL)
	if err != nil {
		u = &url.URL{Scheme: "http", Host: "localhost"}
	}
	u.Path = path.Join(append([]string{u.Path, "api"}, parts...)...)
	return u.String()
}

// Authenticate exchanges the API key for a bearer token.
func (g *APIGateway) Authenticate(ctx context.Context, apiKey string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	payload := map[string]string{"apiKey": apiKey}
	if err := g.call(ctx, http.MethodPost, g.endpoint("auth"), payload, &out, false); err != nil {
		return "", err
	}
	g.storeToken(out.Token)
	return out.Token, nil
}

// RefreshToken re-authenticates with the configured API key.
func (g *APIGateway) RefreshToken(ctx context.Context) (string, error) {
	return g.Authenticate(ctx, g.APIKey)
}

func (g *APIGateway) InitializeSession(ctx context.Context) (*SessionData, error) {
	var out SessionData
	if err := g.call(ctx, http.MethodPost, g.endpoint("sessions"), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *APIGateway) SendChatMessage(ctx context.Context, text, sessionID string) (*ChatResponse, error) {
	if g.Chat != nil {
		var history []models.ChatMessage
		if g.History != nil {
			history = g.History(ctx, sessionID)
		}
		reply, err := g.Chat.GenerateReply(ctx, text, history)
		if err != nil {
			return nil, NewNetworkError("sendChatMessage", err)
		}
		return &ChatResponse{
			Message: models.ChatMessage{
				Content:   reply,
				Sender:    models.SenderAssistant,
				Timestamp: time.Now(),
				Type:      models.MessageText,
			},
			SessionID: sessionID,
		}, nil
	}

	payload := map[string]string{"message": text, "sessionId": sessionID}
	var out ChatResponse
	if err := g.call(ctx, http.MethodPost, g.endpoint("chat"), payload, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *APIGateway) GetAvailableSlots(ctx context.Context, date, serviceType string) ([]models.TimeSlot, error) {
	u := fmt.Sprintf("%s?date=%s&serviceType=%s", g.endpoint("slots"), url.QueryEscape(date), url.QueryEscape(serviceType))
	var out []models.TimeSlot
	if err := g.call(ctx, http.MethodGet, u, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *APIGateway) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	var out models.BookingResult
	if err := g.call(ctx, http.MethodPost, g.endpoint("bookings"), req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *APIGateway) UpdateBooking(ctx context.Context, bookingID string, patch models.BookingRequest) (*models.BookingResult, error) {
	var out models.BookingResult
	if err := g.call(ctx, http.MethodPatch, g.endpoint("bookings", bookingID), patch, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *APIGateway) CancelBooking(ctx context.Context, bookingID string) error {
	return g.call(ctx, http.MethodDelete, g.endpoint("bookings", bookingID), nil, nil, true)
}

func (g *APIGateway) ProcessVoiceInput(ctx context.Context, audio []byte) (*VoiceResult, error) {
	if g.Voice != nil {
		return g.Voice.Transcribe(ctx, audio)
	}
	payload := map[string][]byte{"audio": audio}
	var out VoiceResult
	if err := g.call(ctx, http.MethodPost, g.endpoint("voice"), payload, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *APIGateway) TrackEvent(ctx context.Context, event models.AnalyticsEvent) error {
	return g.call(ctx, http.MethodPost, g.endpoint("events"), event, nil, true)
}

// storeToken caches the bearer token and its expiry claim so calls can
// re-authenticate before the token lapses.
func (g *APIGateway) storeToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
	g.tokenExp = time.Time{}

	claims := jwt.MapClaims{}
	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, ok := claims["exp"].(float64); ok {
			g.tokenExp = time.Unix(int64(exp), 0)
		}
	}
}

func (g *APIGateway) currentToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	token := g.token
	exp := g.tokenExp
	g.mu.Unlock()

	if token != "" && (exp.IsZero() || time.Until(exp) > time.Minute) {
		return token, nil
	}
	return g.Authenticate(ctx, g.APIKey)
}

// call performs one HTTP exchange and normalizes failures into the error
// taxonomy. Transport errors and 5xx-class responses become NetworkError,
// 401/403 AuthError, 400/422 a field-scoped ValidationError.
func (g *APIGateway) call(ctx context.Context, method, rawURL string, payload, out any, authed bool) error {
	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewBuffer(b)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", g.APIKey)
	if authed {
		token, err := g.currentToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError(method+" "+rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewNetworkError(rawURL, fmt.Errorf("decode response: %w", err))
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewAuthError(rawURL, resp.Status)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var ve models.ValidationError
		if err := json.NewDecoder(resp.Body).Decode(&ve); err != nil || ve.Message == "" {
			ve = models.ValidationError{Code: "rejected", Message: resp.Status}
		}
		return &ve
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return NewNetworkError(rawURL, fmt.Errorf("upstream status %s", resp.Status))
	default:
		return NewNetworkError(rawURL, fmt.Errorf("unexpected status %s", resp.Status))
	}
}
