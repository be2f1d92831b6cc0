package handlers

import (
	"net/http"

	"chatwidget/services/conversation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler exposes the conversation engine over HTTP for the embedded
// widget script.
type ChatHandler struct {
	Manager *conversation.Manager
	Logger  *zap.Logger
}

func NewChatHandler(manager *conversation.Manager, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{Manager: manager, Logger: logger}
}

// StartSessionHandler starts a fresh session or resumes an existing one.
func (h *ChatHandler) StartSessionHandler(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId"`
	}
	_ = c.ShouldBindJSON(&input)

	o, sess, err := h.Manager.Acquire(c.Request.Context(), input.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": sess,
		"state":   o.Snapshot(),
	})
}

// SendMessageHandler submits one user turn and returns the updated
// transcript once the turn has been processed.
func (h *ChatHandler) SendMessageHandler(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId" binding:"required"`
		Text      string `json:"text" binding:"required"`
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

	o.SubmitUserText(input.Text)
	o.Wait()

	sess, err := o.Session(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": sess,
		"state":   o.Snapshot(),
	})
}

// GetMessagesHandler returns the transcript for a session.
func (h *ChatHandler) GetMessagesHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")
	o, ok := h.Manager.Lookup(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}
	sess, err := o.Session(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sess.Messages})
}

// ClearSessionHandler resets the conversation to a fresh session.
func (h *ChatHandler) ClearSessionHandler(c *gin.Context) {
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
	if err := o.Clear(); err != nil {
		respondError(c, err)
		return
	}
	sess, err := o.Session(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.Manager.Rebind(input.SessionID, sess.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"session": sess,
		"state":   o.Snapshot(),
	})
}
