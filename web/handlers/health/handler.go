package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/web/common"
)

type Endpoint struct {
	dm *core.DatabaseManager
}

func Register(root, api *gin.RouterGroup, dm *core.DatabaseManager) {
	endpoint := &Endpoint{dm: dm}
	root.GET("/ping", endpoint.Ping)
	root.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.GET("/health", endpoint.Health)
}

func (ep *Endpoint) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (ep *Endpoint) Health(c *gin.Context) {
	if err := ep.dm.Ping(c.Request.Context()); err != nil {
		common.Logger(c).Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, common.NewErrorResponse("UNAVAILABLE", "Database unreachable"))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"status": "ok"}))
}
