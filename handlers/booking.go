package handlers

import (
	"net/http"

	"chatwidget/models"
	"chatwidget/services/conversation"
	"chatwidget/services/gateway"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the booking sub-flow to the widget's form and
// calendar views.
type BookingHandler struct {
	Manager *conversation.Manager
	Gateway gateway.Gateway
	Logger  *zap.Logger
}

func NewBookingHandler(manager *conversation.Manager, gw gateway.Gateway, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Manager: manager, Gateway: gw, Logger: logger}
}

func (h *BookingHandler) lookup(c *gin.Context, sessionID string) (*conversation.Orchestrator, bool) {
	o, ok := h.Manager.Lookup(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	}
	return o, ok
}

// UpdateFieldHandler applies one form field edit to the booking draft.
func (h *BookingHandler) UpdateFieldHandler(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId" binding:"required"`
		Field     string `json:"field" binding:"required"`
		Value     string `json:"value"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	o, ok := h.lookup(c, input.SessionID)
	if !ok {
		return
	}
	if ve := o.UpdateBookingField(input.Field, input.Value); ve != nil {
		respondError(c, ve)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": o.Snapshot()})
}

// GetSlotsHandler loads availability for the calendar view. The returned
// generation token must accompany the subsequent slot selection.
func (h *BookingHandler) GetSlotsHandler(c *gin.Context) {
	sessionID := c.Query("sessionId")
	date := c.Query("date")
	serviceType := c.Query("serviceType")
	o, ok := h.lookup(c, sessionID)
	if !ok {
		return
	}
	slots, generation, err := o.FetchSlots(date, serviceType)
	if err != nil {
		respondError(c, err)
		return
	}
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	c.JSON(http.StatusOK, gin.H{
		"slots":      slots,
		"generation": generation,
		"state":      o.Snapshot(),
	})
}

// SelectSlotHandler picks one slot from a prior availability fetch.
func (h *BookingHandler) SelectSlotHandler(c *gin.Context) {
	var input struct {
		SessionID  string `json:"sessionId" binding:"required"`
		SlotID     string `json:"slotId" binding:"required"`
		Generation int    `json:"generation"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	o, ok := h.lookup(c, input.SessionID)
	if !ok {
		return
	}
	if err := o.SelectSlot(input.SlotID, input.Generation); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": o.Snapshot()})
}

// SubmitBookingHandler submits the draft booking.
func (h *BookingHandler) SubmitBookingHandler(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	o, ok := h.lookup(c, input.SessionID)
	if !ok {
		return
	}
	result, err := o.SubmitBooking()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"state":  o.Snapshot(),
	})
}

// CancelDraftHandler abandons the in-progress booking draft.
func (h *BookingHandler) CancelDraftHandler(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	o, ok := h.lookup(c, input.SessionID)
	if !ok {
		return
	}
	o.CancelBooking()
	c.JSON(http.StatusOK, gin.H{"state": o.Snapshot()})
}

// UpdateBookingHandler reschedules an already-confirmed booking.
func (h *BookingHandler) UpdateBookingHandler(c *gin.Context) {
	bookingID := c.Param("bookingId")
	var patch models.BookingRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	result, err := h.Gateway.UpdateBooking(c.Request.Context(), bookingID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// CancelBookingHandler cancels an already-confirmed booking.
func (h *BookingHandler) CancelBookingHandler(c *gin.Context) {
	bookingID := c.Param("bookingId")
	if err := h.Gateway.CancelBooking(c.Request.Context(), bookingID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": bookingID})
}
