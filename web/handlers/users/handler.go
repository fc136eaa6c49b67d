package users

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/employee"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/web/common"
	"punchinout.com/punchinout/web/middlewares"
)

type Endpoint struct {
	directory *employee.Directory
}

func Register(protected *gin.RouterGroup, directory *employee.Directory) {
	endpoint := &Endpoint{directory: directory}
	protected.POST("/users", endpoint.Create)
	protected.GET("/users", endpoint.List)
	protected.GET("/users/:id", endpoint.Find)
}

type CreateUserDTO struct {
	EmployeeCode  string  `json:"employeeCode" binding:"required,max=50"`
	Name          string  `json:"name" binding:"required,max=255"`
	Status        string  `json:"status" binding:"omitempty,oneof=ACTIVE DISABLED"`
	FaceProfileID *string `json:"faceProfileId"`
}

func (ep *Endpoint) Create(c *gin.Context) {
	var body CreateUserDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}

	actor := audit.AdminActor(middlewares.CurrentAdmin(c).Admin.ID)
	user, err := ep.directory.Create(c.Request.Context(), actor, employee.CreateInput{
		EmployeeCode:  body.EmployeeCode,
		Name:          body.Name,
		Status:        model.UserStatus(body.Status),
		FaceProfileID: body.FaceProfileID,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(user))
}

func (ep *Endpoint) List(c *gin.Context) {
	limit, offset := common.Paging(c)
	users, total, err := ep.directory.List(c.Request.Context(), employee.ListFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(users, total, limit, offset))
}

func (ep *Endpoint) Find(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.WriteError(c, apperr.Invalid("Invalid id"))
		return
	}
	user, err := ep.directory.Get(c.Request.Context(), uint(id))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(user))
}
