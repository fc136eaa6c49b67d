package web

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/auth"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/device"
	"punchinout.com/punchinout/employee"
	"punchinout.com/punchinout/face"
	"punchinout.com/punchinout/punch"
	"punchinout.com/punchinout/web/handlers/admin"
	"punchinout.com/punchinout/web/handlers/devices"
	facehandler "punchinout.com/punchinout/web/handlers/face"
	"punchinout.com/punchinout/web/handlers/health"
	punchhandler "punchinout.com/punchinout/web/handlers/punch"
	"punchinout.com/punchinout/web/handlers/users"
	"punchinout.com/punchinout/web/middlewares"
)

// Services are the dependencies the HTTP surface is built from.
type Services struct {
	DB        *core.DatabaseManager
	Audit     *audit.Store
	Verifier  *auth.Verifier
	Registry  *device.Registry
	Directory *employee.Directory
	Punch     *punch.Manager
	// Face is optional; without it the face routes are not mounted.
	Face *face.Bridge
	Log  *zap.Logger
}

func NewRouter(s Services) *gin.Engine {
	router := gin.New()
	router.Use(middlewares.Logging(s.Log), middlewares.Recovery(), middlewares.Metrics())

	api := router.Group("/api")
	health.Register(&router.RouterGroup, api, s.DB)

	adminGroup := api.Group("")
	adminGroup.Use(middlewares.AdminAuthentication(s.Verifier))

	deviceGroup := api.Group("")
	deviceGroup.Use(middlewares.DeviceAuthentication(s.Verifier))

	admin.Register(api, adminGroup, s.Verifier, s.Audit)
	devices.Register(api, adminGroup, s.Registry, s.Verifier)
	users.Register(adminGroup, s.Directory)
	punchhandler.Register(deviceGroup, adminGroup, s.Punch)
	if s.Face != nil {
		facehandler.Register(deviceGroup, adminGroup, s.Face)
	}

	return router
}
