package middleware

import (
	"crypto/subtle"
	"net/http"

	"chatwidget/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EmbedKeyMiddleware verifies the site-level embed key the widget script
// ships with. This identifies the embedding site, not the end user; end
// users stay anonymous until they share contact details in a booking.
func EmbedKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Widget-Key")
		if key == "" {
			key = c.Query("widgetKey")
		}
		expected := config.AppConfig.APIKey
		if expected == "" || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
			zap.L().Warn("rejected widget request with bad embed key", zap.String("ip", getClientIP(c)))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing widget key"})
			return
		}
		c.Next()
	}
}
