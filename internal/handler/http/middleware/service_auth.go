package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/service"
)

const GinContextServiceInstanceKey = "serviceInstance"

// ServiceAuthMiddleware gates the internal endpoints behind the rotating
// service token.
func ServiceAuthMiddleware(rotator *service.ServiceTokenRotator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(service.ServiceTokenHeader)
		record, err := rotator.ValidateIncoming(c.Request.Context(), token)
		if err != nil {
			logger.Warn("Rejected internal call",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid service token",
				"code":  "service_token_invalid",
			})
			return
		}

		c.Set(GinContextServiceInstanceKey, record.InstanceID)
		c.Next()
	}
}
