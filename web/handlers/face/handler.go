package face

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/face"
	"punchinout.com/punchinout/web/common"
	"punchinout.com/punchinout/web/middlewares"
)

type Endpoint struct {
	bridge *face.Bridge
}

func Register(device, admin *gin.RouterGroup, bridge *face.Bridge) {
	endpoint := &Endpoint{bridge: bridge}
	admin.POST("/face/enroll", endpoint.Enroll)
	admin.GET("/face/enroll/:employeeId/images", endpoint.Images)

	device.POST("/face/attendance", endpoint.Attendance)
}

type EnrollDTO struct {
	EmployeeID string   `json:"employeeId"`
	Images     []string `json:"images"`
	Mode       string   `json:"mode" binding:"omitempty,oneof=replace append"`
}

type AttendanceDTO struct {
	Image      string `json:"image"`
	Event      string `json:"event"`
	GPSLat     string `json:"gpsLat"`
	GPSLng     string `json:"gpsLng"`
	EmployeeID string `json:"employeeId"`
}

func (ep *Endpoint) Enroll(c *gin.Context) {
	var body EnrollDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}

	actor := audit.AdminActor(middlewares.CurrentAdmin(c).Admin.ID)
	result, err := ep.bridge.Enroll(c.Request.Context(), actor, face.EnrollRequest{
		EmployeeID: body.EmployeeID,
		Images:     body.Images,
		Mode:       body.Mode,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

func (ep *Endpoint) Images(c *gin.Context) {
	keys, err := ep.bridge.ArchivedImages(c.Request.Context(), c.Param("employeeId"))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(keys))
}

// Attendance only recognizes the face. The kiosk follows up with
// /punch/in or /punch/out for the returned employee.
func (ep *Endpoint) Attendance(c *gin.Context) {
	var body AttendanceDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}

	result, err := ep.bridge.RecognizeAttendance(c.Request.Context(), face.RecognizeRequest{
		Image:      body.Image,
		Event:      body.Event,
		GPSLat:     body.GPSLat,
		GPSLng:     body.GPSLng,
		EmployeeID: body.EmployeeID,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}
