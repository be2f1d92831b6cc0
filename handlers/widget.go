package handlers

import (
	"net/http"

	"chatwidget/config"
	"chatwidget/services/conversation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WidgetHandler serves the widget's bootstrap config and presentation
// surface controls.
type WidgetHandler struct {
	Manager *conversation.Manager
	Logger  *zap.Logger
}

func NewWidgetHandler(manager *conversation.Manager, logger *zap.Logger) *WidgetHandler {
	return &WidgetHandler{Manager: manager, Logger: logger}
}

// WidgetConfigHandler returns the embed-time configuration the widget
// script needs before it starts a session.
func (h *WidgetHandler) WidgetConfigHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"theme":          config.AppConfig.WidgetTheme,
		"position":       config.AppConfig.WidgetPosition,
		"welcomeMessage": config.AppConfig.WelcomeMessage,
		"enableVoice":    config.AppConfig.EnableVoice,
	})
}

// WidgetStateHandler returns the current widget snapshot.
func (h *WidgetHandler) WidgetStateHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")
	o, ok := h.Manager.Lookup(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": o.Snapshot()})
}

func (h *WidgetHandler) surfaceOp(c *gin.Context, op func(*conversation.Orchestrator)) {
	var input struct {
		SessionID string `json:"sessionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	o, ok := h.Manager.Lookup(input.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}
	op(o)
	c.JSON(http.StatusOK, gin.H{"state": o.Snapshot()})
}

// OpenWidgetHandler makes the widget visible.
func (h *WidgetHandler) OpenWidgetHandler(c *gin.Context) {
	h.surfaceOp(c, func(o *conversation.Orchestrator) { o.OpenWidget() })
}

// CloseWidgetHandler hides the widget and discards in-flight results.
func (h *WidgetHandler) CloseWidgetHandler(c *gin.Context) {
	h.surfaceOp(c, func(o *conversation.Orchestrator) { o.CloseWidget() })
}

// MinimizeHandler toggles the minimized state.
func (h *WidgetHandler) MinimizeHandler(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId" binding:"required"`
		Minimized bool   `json:"minimized"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	o, ok := h.Manager.Lookup(input.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}
	o.SetMinimized(input.Minimized)
	c.JSON(http.StatusOK, gin.H{"state": o.Snapshot()})
}
