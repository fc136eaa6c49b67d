package middlewares

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"punchinout.com/punchinout/web/common"
)

// Logging tags every request with an id and logs its completion.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(common.RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		requestLogger := log.With(zap.String("request_id", requestID))
		c.Set(common.LoggerKey, requestLogger)

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= 500 {
			requestLogger.Error("request completed", fields...)
			return
		}
		requestLogger.Info("request completed", fields...)
	}
}

// Recovery turns a panic into a generic 500.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		common.Logger(c).Error("panic recovered", zap.Any("panic", recovered), zap.Stack("stack"))
		c.AbortWithStatusJSON(500, common.NewErrorResponse("INTERNAL_ERROR", "Internal server error"))
	})
}
