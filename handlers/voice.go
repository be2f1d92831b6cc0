package handlers

import (
	"io"
	"net/http"

	"chatwidget/config"
	"chatwidget/services/conversation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxVoiceClipBytes caps uploads at roughly one minute of LINEAR16 16kHz
// mono audio.
const maxVoiceClipBytes = 2 << 20

// VoiceHandler accepts voice clips and runs them through transcription
// and the normal message pipeline.
type VoiceHandler struct {
	Manager *conversation.Manager
	Logger  *zap.Logger
}

func NewVoiceHandler(manager *conversation.Manager, logger *zap.Logger) *VoiceHandler {
	return &VoiceHandler{Manager: manager, Logger: logger}
}

// TranscribeHandler accepts a multipart "audio" upload for a session. The
// transcribed text flows through the same ordered pipeline as typed text.
func (h *VoiceHandler) TranscribeHandler(c *gin.Context) {
	if !config.AppConfig.EnableVoice {
		c.JSON(http.StatusForbidden, gin.H{"error": "voice_disabled"})
		return
	}
	sessionID := c.PostForm("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": "sessionId is required"})
		return
	}
	o, ok := h.Manager.Lookup(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}

	file, _, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": "audio file is required"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxVoiceClipBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": "failed to read audio"})
		return
	}
	if len(audio) > maxVoiceClipBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio_too_large"})
		return
	}

	o.RequestVoiceTranscription(audio)
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
