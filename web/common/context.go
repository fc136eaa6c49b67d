package common

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	LoggerKey    = "logger"
	RequestIDKey = "request_id"
)

// Logger returns the request scoped logger, or the global one outside a
// request.
func Logger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(LoggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.L()
}
