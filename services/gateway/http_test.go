package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"chatwidget/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer serves /api/auth plus one scripted endpoint.
func newTestServer(t *testing.T, path string, handler http.HandlerFunc) (*httptest.Server, *int64) {
	t.Helper()
	var authCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&authCalls, 1)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "opaque-token"})
	})
	if path != "" {
		mux.HandleFunc(path, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &authCalls
}

func newTestAPIGateway(baseURL string) *APIGateway {
	return NewAPIGateway(baseURL, "widget-key", 2*time.Second, zap.NewNop())
}

func TestUnauthorizedBecomesAuthError(t *testing.T) {
	server, _ := newTestServer(t, "/api/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	g := newTestAPIGateway(server.URL)

	_, err := g.SendChatMessage(context.Background(), "hi", "s1")
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.False(t, IsTransient(err))
}

func TestUnprocessableBecomesValidationError(t *testing.T) {
	server, _ := newTestServer(t, "/api/bookings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"field": "customerEmail", "code": "invalid_email", "message": "email rejected",
		})
	})
	g := newTestAPIGateway(server.URL)

	_, err := g.CreateBooking(context.Background(), models.BookingRequest{})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "customerEmail", ve.Field)
	assert.Equal(t, "invalid_email", ve.Code)
	assert.False(t, IsTransient(err))
}

func TestServerErrorsAreTransient(t *testing.T) {
	server, _ := newTestServer(t, "/api/slots", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	g := newTestAPIGateway(server.URL)

	_, err := g.GetAvailableSlots(context.Background(), "2026-09-15", "consultation")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestTransportFailureIsTransient(t *testing.T) {
	server, _ := newTestServer(t, "", nil)
	server.Close() // connection refused from here on
	g := newTestAPIGateway(server.URL)

	_, err := g.InitializeSession(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	server, authCalls := newTestServer(t, "/api/chat", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(ChatResponse{SessionID: "s1"})
	})
	g := newTestAPIGateway(server.URL)

	_, err := g.SendChatMessage(context.Background(), "one", "s1")
	require.NoError(t, err)
	_, err = g.SendChatMessage(context.Background(), "two", "s1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(authCalls))
}

func TestGetAvailableSlotsDecodes(t *testing.T) {
	start := time.Date(2026, 9, 15, 14, 0, 0, 0, time.UTC)
	server, _ := newTestServer(t, "/api/slots", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-09-15", r.URL.Query().Get("date"))
		assert.Equal(t, "consultation", r.URL.Query().Get("serviceType"))
		_ = json.NewEncoder(w).Encode([]models.TimeSlot{{
			ID: "slot-1", StartTime: start, EndTime: start.Add(30 * time.Minute), Available: true,
		}})
	})
	g := newTestAPIGateway(server.URL)

	slots, err := g.GetAvailableSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "slot-1", slots[0].ID)
	assert.True(t, slots[0].Available)
}
