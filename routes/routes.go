package routes

import (
	"net/http"
	"time"

	"chatwidget/handlers"
	"chatwidget/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterChatRoutes registers conversation endpoints.
func RegisterChatRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/chat")
	{
		api.Use(middleware.EmbedKeyMiddleware())
		api.POST("/session", hb.StartSessionHandler)
		api.POST("/message", hb.SendMessageHandler)
		api.GET("/messages/:sessionId", hb.GetMessagesHandler)
		api.POST("/clear", hb.ClearSessionHandler)
	}
}

// RegisterVoiceRoutes registers voice input endpoints.
func RegisterVoiceRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/voice")
	{
		api.Use(middleware.EmbedKeyMiddleware())
		api.POST("/transcribe", hb.TranscribeHandler)
	}
}

// RegisterBookingRoutes registers booking sub-flow endpoints.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/booking")
	{
		api.Use(middleware.EmbedKeyMiddleware())
		api.POST("/field", hb.UpdateFieldHandler)
		api.GET("/slots", hb.GetSlotsHandler)
		api.POST("/slot", hb.SelectSlotHandler)
		api.POST("/submit", hb.SubmitBookingHandler)
		api.POST("/cancel", hb.CancelDraftHandler)

		// Operations on already-confirmed bookings.
		api.PATCH("/:bookingId", hb.UpdateBookingHandler)
		api.DELETE("/:bookingId", hb.CancelBookingHandler)
	}
}

// RegisterWidgetRoutes registers widget surface endpoints.
func RegisterWidgetRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/widget")
	{
		// Config is fetched before the embed key handshake completes.
		api.GET("/config", hb.WidgetConfigHandler)

		protected := api.Group("")
		protected.Use(middleware.EmbedKeyMiddleware())
		protected.GET("/state/:sessionId", hb.WidgetStateHandler)
		protected.POST("/open", hb.OpenWidgetHandler)
		protected.POST("/close", hb.CloseWidgetHandler)
		protected.POST("/minimize", hb.MinimizeHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// CORSMiddleware allows the widget to call from any embedding site.
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Widget-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

// SetupRoutes wires every route group onto the router.
func SetupRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(CORSMiddleware())
	RegisterHealthRoute(r)
	RegisterWidgetRoutes(r, hb)
	RegisterChatRoutes(r, hb)
	RegisterVoiceRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
}
