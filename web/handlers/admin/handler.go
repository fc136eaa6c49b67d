package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/auth"
	"punchinout.com/punchinout/web/common"
	"punchinout.com/punchinout/web/middlewares"
)

type Endpoint struct {
	verifier *auth.Verifier
	audit    *audit.Store
}

func Register(public, protected *gin.RouterGroup, verifier *auth.Verifier, store *audit.Store) {
	endpoint := &Endpoint{verifier: verifier, audit: store}
	public.POST("/admin/login", endpoint.Login)

	protected.POST("/admin/logout", endpoint.Logout)
	protected.GET("/admin/me", endpoint.Me)
	protected.GET("/admin/audit", endpoint.Audit)
}

type LoginDTO struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AdminDTO struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginResponseDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     AdminDTO  `json:"admin"`
}

func (ep *Endpoint) Login(c *gin.Context) {
	var body LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		common.WriteBindingError(c, err)
		return
	}

	admin, token, err := ep.verifier.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	maxAge := int(time.Until(token.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middlewares.AdminCookie, token.Token, maxAge, "/", "", c.Request.TLS != nil, true)

	c.JSON(http.StatusOK, common.NewSuccessResponse(LoginResponseDTO{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		Admin:     AdminDTO{ID: admin.ID, Email: admin.Email, Role: string(admin.Role)},
	}))
}

func (ep *Endpoint) Logout(c *gin.Context) {
	if err := ep.verifier.Logout(c.Request.Context(), middlewares.CurrentAdmin(c)); err != nil {
		common.WriteError(c, err)
		return
	}
	c.SetCookie(middlewares.AdminCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{}))
}

func (ep *Endpoint) Me(c *gin.Context) {
	admin := middlewares.CurrentAdmin(c).Admin
	c.JSON(http.StatusOK, common.NewSuccessResponse(AdminDTO{ID: admin.ID, Email: admin.Email, Role: string(admin.Role)}))
}

func (ep *Endpoint) Audit(c *gin.Context) {
	limit, offset := common.Paging(c)
	rows, total, err := ep.audit.List(c.Request.Context(), audit.Filter{
		ActorType: c.Query("actorType"),
		Action:    c.Query("action"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSearchResponse(rows, total, limit, offset))
}
