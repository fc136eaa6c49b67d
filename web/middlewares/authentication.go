package middlewares

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/auth"
	"punchinout.com/punchinout/web/common"
)

const (
	AdminCookie       = "punchinout.session"
	DeviceTokenHeader = "X-Device-Token"

	adminKey  = "admin"
	deviceKey = "device"
)

type AdminVerifier interface {
	VerifyAdminToken(ctx context.Context, token string) (*auth.AdminPrincipal, error)
}

type DeviceVerifier interface {
	VerifyDeviceToken(ctx context.Context, token string) (*auth.DevicePrincipal, error)
}

func bearer(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AdminAuthentication accepts a Bearer token or the session cookie.
func AdminAuthentication(v AdminVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			cookie, err := c.Cookie(AdminCookie)
			if err != nil || cookie == "" {
				common.WriteError(c, apperr.ErrMissingToken)
				return
			}
			tokenStr = cookie
		}

		principal, err := v.VerifyAdminToken(c.Request.Context(), tokenStr)
		if err != nil {
			common.WriteError(c, err)
			return
		}

		c.Set(adminKey, principal)
		c.Next()
	}
}

// DeviceAuthentication accepts the X-Device-Token header or a Bearer token.
func DeviceAuthentication(v DeviceVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.GetHeader(DeviceTokenHeader)
		if tokenStr == "" {
			var ok bool
			if tokenStr, ok = bearer(c); !ok {
				common.WriteError(c, apperr.ErrMissingToken)
				return
			}
		}

		principal, err := v.VerifyDeviceToken(c.Request.Context(), tokenStr)
		if err != nil {
			common.WriteError(c, err)
			return
		}

		c.Set(deviceKey, principal)
		c.Next()
	}
}

func CurrentAdmin(c *gin.Context) *auth.AdminPrincipal {
	v, _ := c.Get(adminKey)
	p, _ := v.(*auth.AdminPrincipal)
	return p
}

func CurrentDevice(c *gin.Context) *auth.DevicePrincipal {
	v, _ := c.Get(deviceKey)
	p, _ := v.(*auth.DevicePrincipal)
	return p
}
