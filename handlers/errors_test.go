package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatwidget/models"
	"chatwidget/services/bookingflow"
	"chatwidget/services/gateway"
	"chatwidget/services/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func statusFor(t *testing.T, err error) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, err)
	return w.Code
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &models.ValidationError{Field: "customerEmail", Code: "invalid_email", Message: "bad"}, http.StatusUnprocessableEntity},
		{"stale availability", &bookingflow.StaleAvailabilityError{SlotID: "slot-1"}, http.StatusConflict},
		{"operation in progress", &bookingflow.OperationInProgressError{Op: "submit"}, http.StatusConflict},
		{"booking failed", &bookingflow.BookingFailedError{Message: "upstream rejected"}, http.StatusBadGateway},
		{"session expired", &session.ExpiredError{SessionID: "s1"}, http.StatusGone},
		{"session missing", session.ErrNotFound, http.StatusNotFound},
		{"auth", gateway.NewAuthError("sendChatMessage", "denied"), http.StatusUnauthorized},
		{"network", gateway.NewNetworkError("sendChatMessage", errors.New("down")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(t, tc.err))
		})
	}
}
