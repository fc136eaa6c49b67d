package punch

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/punch"
	"punchinout.com/punchinout/web/common"
	"punchinout.com/punchinout/web/middlewares"
)

type Endpoint struct {
	manager *punch.Manager
}

// Register wires the kiosk punch routes onto the device group and the
// history and correction routes onto the admin group.
func Register(device, admin *gin.RouterGroup, manager *punch.Manager) {
	endpoint := &Endpoint{manager: manager}
	device.POST("/punch/in", endpoint.PunchIn)
	device.POST("/punch/out", endpoint.PunchOut)

	admin.GET("/punch/user/:userId", endpoint.History)
	admin.POST("/punch/:id/invalidate", endpoint.Invalidate)
}

type PunchDTO struct {
	UserID uint `json:"userId" binding:"required"`
}

type InvalidateDTO struct {
	Reason string `json:"reason" binding:"max=500"`
}

type HistoryQuery struct {
	Status string           `form:"status"`
	From   *common.DateOnly `form:"from"`
	To     *common.DateOnly `form:"to"`
}

func (ep *Endpoint) PunchIn(c *gin.Context) {
	ep.transition(c, http.StatusCreated, ep.manager.PunchIn)
}

func (ep *Endpoint) PunchOut(c *gin.Context) {
	ep.transition(c, http.StatusOK, ep.manager.PunchOut)
}

func (ep *Endpoint) transition(c *gin.Context, status int, apply func(ctx context.Context, userID, deviceID uint) (*punch.Result, error)) {
	var body PunchDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}

	device := middlewares.CurrentDevice(c).Device
	result, err := apply(c.Request.Context(), body.UserID, device.ID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(status, common.NewSuccessResponse(result))
}

func (ep *Endpoint) History(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || userID == 0 {
		common.WriteError(c, apperr.Invalid("Invalid userId"))
		return
	}

	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		common.WriteError(c, apperr.Invalid("from and to must be dates in YYYY-MM-DD format"))
		return
	}

	limit, offset := common.Paging(c)
	filter := punch.HistoryFilter{Status: query.Status, Limit: limit, Offset: offset}
	if query.From != nil && !query.From.IsZero() {
		from := query.From.Time
		filter.From = &from
	}
	if query.To != nil && !query.To.IsZero() {
		// to is an inclusive calendar day
		to := query.To.NextDay()
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		common.WriteError(c, apperr.Invalid("from must not be after to"))
		return
	}

	entries, total, err := ep.manager.History(c.Request.Context(), uint(userID), filter)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(entries, total, limit, offset))
}

func (ep *Endpoint) Invalidate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.WriteError(c, apperr.Invalid("Invalid id"))
		return
	}

	var body InvalidateDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}

	actor := audit.AdminActor(middlewares.CurrentAdmin(c).Admin.ID)
	record, err := ep.manager.Invalidate(c.Request.Context(), actor, uint(id), body.Reason)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(record))
}
