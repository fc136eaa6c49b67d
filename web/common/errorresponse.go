package common

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"punchinout.com/punchinout/apperr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason_code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func NewErrorResponse(label, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   label,
		Message: message,
	}
}

// WriteError classifies err and writes the matching status and body.
// Internal errors are logged and answered with a generic message.
func WriteError(c *gin.Context, err error) {
	ae := apperr.Classify(err)

	var ext *apperr.ExternalError
	if errors.As(err, &ext) {
		Logger(c).Warn("face service error", zap.Int("status", ext.StatusCode), zap.String("reason", ext.Reason), zap.Error(err))
		c.AbortWithStatusJSON(ext.Status(), &ErrorResponse{
			Error:   ae.Label,
			Message: ext.Message,
			Reason:  ext.Reason,
			Details: ext.Details,
		})
		return
	}

	if ae.Kind == apperr.KindInternal {
		Logger(c).Error("request failed", zap.Error(err))
	}
	c.AbortWithStatusJSON(ae.Status(), NewErrorResponse(ae.Label, ae.Message))
}

// WriteBindingError answers a request whose body or query failed to bind.
func WriteBindingError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.Invalid("").Status(), NewErrorResponse("INVALID_REQUEST", FormatBindingError(err)))
}
