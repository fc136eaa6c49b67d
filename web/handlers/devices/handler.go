package devices

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/auth"
	"punchinout.com/punchinout/device"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/web/common"
	"punchinout.com/punchinout/web/middlewares"
)

type Endpoint struct {
	registry *device.Registry
	verifier *auth.Verifier
}

func Register(public, protected *gin.RouterGroup, registry *device.Registry, verifier *auth.Verifier) {
	endpoint := &Endpoint{registry: registry, verifier: verifier}
	public.POST("/devices/activate-with-code", endpoint.ActivateWithCode)

	protected.POST("/devices", endpoint.Create)
	protected.GET("/devices", endpoint.List)
	protected.GET("/devices/:id", endpoint.Find)
	protected.POST("/devices/activate", endpoint.Activate)
	protected.POST("/devices/deactivate", endpoint.Deactivate)
	protected.POST("/devices/:id/generate-code", endpoint.GenerateCode)
}

type CreateDeviceDTO struct {
	DeviceCode string `json:"deviceCode" binding:"required,max=100"`
	Location   string `json:"location" binding:"max=255"`
	IsActive   bool   `json:"isActive"`
}

type DeviceCodeDTO struct {
	DeviceCode string `json:"deviceCode" binding:"required"`
}

type ActivateWithCodeDTO struct {
	ActivationCode string `json:"activationCode" binding:"required"`
}

type CreatedDeviceDTO struct {
	Device         *model.Device         `json:"device"`
	ActivationCode *model.ActivationCode `json:"activationCode"`
}

type ActivatedDeviceDTO struct {
	Device    *model.Device `json:"device"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

func actor(c *gin.Context) audit.Actor {
	return audit.AdminActor(middlewares.CurrentAdmin(c).Admin.ID)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.WriteError(c, apperr.Invalid("Invalid id"))
		return 0, false
	}
	return uint(id), true
}

func (ep *Endpoint) Create(c *gin.Context) {
	var body CreateDeviceDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}

	d, code, err := ep.registry.CreateDevice(c.Request.Context(), actor(c), device.CreateInput{
		DeviceCode: body.DeviceCode,
		Location:   body.Location,
		IsActive:   body.IsActive,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(CreatedDeviceDTO{Device: d, ActivationCode: code}))
}

func (ep *Endpoint) List(c *gin.Context) {
	limit, offset := common.Paging(c)
	filter := device.ListFilter{Limit: limit, Offset: offset}
	if v := c.Query("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			common.WriteError(c, apperr.Invalid("isActive must be true or false"))
			return
		}
		filter.IsActive = &active
	}

	devices, total, err := ep.registry.ListDevices(c.Request.Context(), filter)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(devices, total, limit, offset))
}

func (ep *Endpoint) Find(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := ep.registry.GetDevice(c.Request.Context(), id)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(d))
}

func (ep *Endpoint) Activate(c *gin.Context) {
	ep.setActive(c, ep.registry.ActivateDevice)
}

func (ep *Endpoint) Deactivate(c *gin.Context) {
	ep.setActive(c, ep.registry.DeactivateDevice)
}

func (ep *Endpoint) setActive(c *gin.Context, apply func(ctx context.Context, a audit.Actor, code string) (*model.Device, error)) {
	var body DeviceCodeDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}
	d, err := apply(c.Request.Context(), actor(c), body.DeviceCode)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(d))
}

func (ep *Endpoint) GenerateCode(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	code, err := ep.registry.GenerateActivationCode(c.Request.Context(), actor(c), id)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(code))
}

// ActivateWithCode is called by an unprovisioned kiosk. It redeems the code
// and hands back the device token the kiosk uses from then on.
func (ep *Endpoint) ActivateWithCode(c *gin.Context) {
	var body ActivateWithCodeDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}

	// the session is written with the redemption so a failed insert leaves
	// the code unused
	var session *model.Session
	d, err := ep.registry.ActivateByCode(c.Request.Context(), body.ActivationCode, func(tx *gorm.DB, activated *model.Device) (err error) {
		session, err = ep.verifier.OpenDeviceSession(tx, activated)
		return err
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	token, err := ep.verifier.SignDeviceSession(d, session)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(ActivatedDeviceDTO{Device: d, Token: token.Token, ExpiresAt: token.ExpiresAt}))
}
