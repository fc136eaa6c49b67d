package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesLabel(t *testing.T) {
	wrapped := fmt.Errorf("punch in: %w", ErrAlreadyPunchedIn.Wrap(errors.New("duplicate key")))
	assert.ErrorIs(t, wrapped, ErrAlreadyPunchedIn)
	assert.NotErrorIs(t, wrapped, ErrNoOpenSession)
	assert.Equal(t, "duplicate key", errors.Unwrap(errors.Unwrap(wrapped)).Error())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrDeviceInactive, Classify(fmt.Errorf("verify: %w", ErrDeviceInactive)))

	internal := Classify(errors.New("boom"))
	assert.Equal(t, KindInternal, internal.Kind)
	assert.Equal(t, http.StatusInternalServerError, internal.Status())
	assert.Equal(t, "Internal server error", internal.Message)

	ext := Classify(&ExternalError{StatusCode: 422, Reason: "NO_FACE", Message: "No face detected"})
	assert.Equal(t, KindExternal, ext.Kind)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", ext.Label)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, ErrSessionRevoked.Status())
	assert.Equal(t, http.StatusBadRequest, ErrCodeAlreadyUsed.Status())
	assert.Equal(t, http.StatusBadRequest, Invalid("bad").Status())
	assert.Equal(t, http.StatusNotFound, ErrPunchNotFound.Status())
	assert.Equal(t, http.StatusBadGateway, (&ExternalError{Message: "down"}).Status())
	assert.Equal(t, http.StatusServiceUnavailable, (&ExternalError{StatusCode: 503}).Status())
}
