package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all widget endpoint handlers into one struct.
type HandlerBundle struct {
	// Chat endpoints
	StartSessionHandler gin.HandlerFunc
	SendMessageHandler  gin.HandlerFunc
	GetMessagesHandler  gin.HandlerFunc
	ClearSessionHandler gin.HandlerFunc

	// Voice endpoints
	TranscribeHandler gin.HandlerFunc

	// Booking endpoints
	UpdateFieldHandler   gin.HandlerFunc
	GetSlotsHandler      gin.HandlerFunc
	SelectSlotHandler    gin.HandlerFunc
	SubmitBookingHandler gin.HandlerFunc
	CancelDraftHandler   gin.HandlerFunc
	UpdateBookingHandler gin.HandlerFunc
	CancelBookingHandler gin.HandlerFunc

	// Widget surface endpoints
	WidgetConfigHandler gin.HandlerFunc
	WidgetStateHandler  gin.HandlerFunc
	OpenWidgetHandler   gin.HandlerFunc
	CloseWidgetHandler  gin.HandlerFunc
	MinimizeHandler     gin.HandlerFunc
}
