package handlers

import (
	"errors"
	"net/http"

	"chatwidget/models"
	"chatwidget/services/bookingflow"
	"chatwidget/services/gateway"
	"chatwidget/services/session"

	"github.com/gin-gonic/gin"
)

// respondError maps the engine's error taxonomy onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	var stale *bookingflow.StaleAvailabilityError
	var inProgress *bookingflow.OperationInProgressError
	var bf *bookingflow.BookingFailedError
	var expired *session.ExpiredError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "validation_failed", "field": ve.Field, "code": ve.Code, "message": ve.Message,
		})
	case errors.As(err, &stale):
		c.JSON(http.StatusConflict, gin.H{
			"error": "stale_availability", "slotId": stale.SlotID, "message": err.Error(),
		})
	case errors.As(err, &inProgress):
		c.JSON(http.StatusConflict, gin.H{
			"error": "operation_in_progress", "message": err.Error(),
		})
	case errors.As(err, &bf):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "booking_failed", "message": bf.Message,
		})
	case errors.As(err, &expired):
		c.JSON(http.StatusGone, gin.H{
			"error": "session_expired", "message": err.Error(),
		})
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case gateway.IsAuth(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth_failed", "message": err.Error()})
	case gateway.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream_unavailable", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
	}
}
