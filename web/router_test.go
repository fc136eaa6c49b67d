package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/auth"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/core/coretest"
	"punchinout.com/punchinout/device"
	"punchinout.com/punchinout/employee"
	"punchinout.com/punchinout/face"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/punch"
	"punchinout.com/punchinout/security"
)

type testServer struct {
	t      *testing.T
	dm     *core.DatabaseManager
	router *gin.Engine
}

func newTestServer(t *testing.T, vendor *httptest.Server) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dm := coretest.New(t)
	log := zap.NewNop()
	store := audit.NewStore(dm)
	signer := security.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "punchinout")
	verifier := auth.NewVerifier(dm, signer, security.NewBcryptHasher(4), store, log, auth.Options{})
	directory := employee.NewDirectory(dm, store)

	_, err := verifier.EnsureAdmin(context.Background(), "admin@punchinout.com", "secret", model.RoleSuperAdmin)
	require.NoError(t, err)

	services := Services{
		DB:        dm,
		Audit:     store,
		Verifier:  verifier,
		Registry:  device.NewRegistry(dm, store, nil, log),
		Directory: directory,
		Punch:     punch.NewManager(dm, store, log),
		Log:       log,
	}
	if vendor != nil {
		client := face.NewClient(face.Config{
			EnrollURL:     vendor.URL + "/enroll",
			AttendanceURL: vendor.URL + "/attendance",
			DeviceID:      "vendor-device",
			DeviceSecret:  "vendor-secret",
		})
		services.Face = face.NewBridge(client, directory, store, nil, log)
	}
	return &testServer{t: t, dm: dm, router: NewRouter(services)}
}

func (s *testServer) do(method, path string, body any, headers map[string]string) (int, map[string]any) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/admin/login", map[string]string{
		"email": "admin@punchinout.com", "password": "secret",
	}, nil)
	require.Equal(s.t, http.StatusOK, status, body)
	return data(body)["token"].(string)
}

// provisionDevice creates a device and redeems its activation code.
func (s *testServer) provisionDevice(adminToken, code string) (deviceID float64, deviceToken string) {
	s.t.Helper()
	admin := bearer(adminToken)
	status, body := s.do(http.MethodPost, "/api/devices", map[string]any{"deviceCode": code, "location": "Lobby"}, admin)
	require.Equal(s.t, http.StatusCreated, status, body)
	activation := data(body)["activationCode"].(map[string]any)["code"].(string)

	status, body = s.do(http.MethodPost, "/api/devices/activate-with-code", map[string]string{"activationCode": activation}, nil)
	require.Equal(s.t, http.StatusOK, status, body)
	d := data(body)
	return d["device"].(map[string]any)["id"].(float64), d["token"].(string)
}

func (s *testServer) createUser(adminToken, code string) float64 {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/users", map[string]string{"employeeCode": code, "name": "Ana"}, bearer(adminToken))
	require.Equal(s.t, http.StatusCreated, status, body)
	return data(body)["id"].(float64)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func deviceHeader(token string) map[string]string {
	return map[string]string{"X-Device-Token": token}
}

func data(body map[string]any) map[string]any {
	return body["data"].(map[string]any)
}

func TestPing(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body["message"])

	status, _ = s.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	s := newTestServer(t, nil)

	wrongStatus, wrongBody := s.do(http.MethodPost, "/api/admin/login", map[string]string{
		"email": "admin@punchinout.com", "password": "nope",
	}, nil)
	unknownStatus, unknownBody := s.do(http.MethodPost, "/api/admin/login", map[string]string{
		"email": "ghost@punchinout.com", "password": "secret",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, unknownStatus)
	assert.Equal(t, wrongBody, unknownBody)
	assert.Equal(t, "INVALID_CREDENTIALS", wrongBody["error"])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(http.MethodGet, "/api/devices", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_TOKEN", body["error"])

	status, body = s.do(http.MethodGet, "/api/devices", nil, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", body["error"])
}

func TestLogoutRevokesAdminToken(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.adminToken()

	status, body := s.do(http.MethodGet, "/api/admin/me", nil, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin@punchinout.com", data(body)["email"])

	status, _ = s.do(http.MethodPost, "/api/admin/logout", nil, bearer(token))
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(http.MethodGet, "/api/admin/me", nil, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "SESSION_REVOKED", body["error"])
}

func TestKioskPunchFlow(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.adminToken()
	_, deviceToken := s.provisionDevice(admin, "KIOSK-1")
	userID := s.createUser(admin, "E-100")

	status, body := s.do(http.MethodPost, "/api/punch/in", map[string]any{"userId": userID}, deviceHeader(deviceToken))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "OPEN", data(body)["record"].(map[string]any)["status"])

	status, body = s.do(http.MethodPost, "/api/punch/in", map[string]any{"userId": userID}, deviceHeader(deviceToken))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ALREADY_PUNCHED_IN", body["error"])

	status, body = s.do(http.MethodPost, "/api/punch/out", map[string]any{"userId": userID}, bearer(deviceToken))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "CLOSED", data(body)["record"].(map[string]any)["status"])

	status, body = s.do(http.MethodPost, "/api/punch/out", map[string]any{"userId": userID}, deviceHeader(deviceToken))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "NO_OPEN_SESSION", body["error"])

	status, body = s.do(http.MethodGet, "/api/punch/user/1?status=CLOSED&from=2000-01-01", nil, bearer(admin))
	require.Equal(t, http.StatusOK, status, body)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "KIOSK-1", entries[0].(map[string]any)["deviceCode"])
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	status, body = s.do(http.MethodGet, "/api/punch/user/1?from=yesterday", nil, bearer(admin))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", body["error"])
}

func TestDeviceTokenFailures(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.adminToken()
	_, deviceToken := s.provisionDevice(admin, "KIOSK-1")
	userID := s.createUser(admin, "E-100")

	status, body := s.do(http.MethodPost, "/api/punch/in", map[string]any{"userId": userID}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_TOKEN", body["error"])

	status, body = s.do(http.MethodPost, "/api/punch/in", map[string]any{"userId": userID}, deviceHeader("garbage"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_DEVICE_TOKEN", body["error"])

	// an admin token is not a device token
	status, body = s.do(http.MethodPost, "/api/punch/in", map[string]any{"userId": userID}, deviceHeader(admin))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_DEVICE_TOKEN", body["error"])

	status, _ = s.do(http.MethodPost, "/api/devices/deactivate", map[string]string{"deviceCode": "KIOSK-1"}, bearer(admin))
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(http.MethodPost, "/api/punch/in", map[string]any{"userId": userID}, deviceHeader(deviceToken))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "DEVICE_INACTIVE", body["error"])
}

func TestDeletedDeviceTokenIsUnauthorized(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.adminToken()
	deviceID, deviceToken := s.provisionDevice(admin, "KIOSK-1")
	userID := s.createUser(admin, "E-100")

	require.NoError(t, s.dm.Exec(context.Background(), func(db *gorm.DB) error {
		return db.Delete(&model.Device{}, uint(deviceID)).Error
	}))

	status, body := s.do(http.MethodPost, "/api/punch/in", map[string]any{"userId": userID}, deviceHeader(deviceToken))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "DEVICE_NOT_FOUND", body["error"])

	// admin lookups of a missing device stay 404
	status, body = s.do(http.MethodGet, "/api/devices/999", nil, bearer(admin))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "DEVICE_NOT_FOUND", body["error"])
}

func TestFailedSessionInsertLeavesCodeRedeemable(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.adminToken()

	status, body := s.do(http.MethodPost, "/api/devices", map[string]any{"deviceCode": "KIOSK-1"}, bearer(admin))
	require.Equal(t, http.StatusCreated, status, body)
	activation := data(body)["activationCode"].(map[string]any)["code"].(string)

	ctx := context.Background()
	require.NoError(t, s.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Exec(`CREATE TRIGGER sessions_unavailable BEFORE INSERT ON sessions
			BEGIN SELECT RAISE(ABORT, 'sessions unavailable'); END`).Error
	}))

	status, body = s.do(http.MethodPost, "/api/devices/activate-with-code", map[string]string{"activationCode": activation}, nil)
	require.Equal(t, http.StatusInternalServerError, status, body)
	assert.Equal(t, "INTERNAL_ERROR", body["error"])

	status, body = s.do(http.MethodGet, "/api/devices?isActive=true", nil, bearer(admin))
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])

	require.NoError(t, s.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Exec(`DROP TRIGGER sessions_unavailable`).Error
	}))

	status, body = s.do(http.MethodPost, "/api/devices/activate-with-code", map[string]string{"activationCode": activation}, nil)
	require.Equal(t, http.StatusOK, status, body)
	deviceToken := data(body)["token"].(string)

	userID := s.createUser(admin, "E-100")
	status, body = s.do(http.MethodPost, "/api/punch/in", map[string]any{"userId": userID}, deviceHeader(deviceToken))
	assert.Equal(t, http.StatusCreated, status, body)
}

func TestActivationCodeIsSingleUse(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.adminToken()
	deviceID, _ := s.provisionDevice(admin, "KIOSK-1")

	status, body := s.do(http.MethodPost, "/api/devices/activate-with-code", map[string]string{"activationCode": "NOPE"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "CODE_NOT_FOUND", body["error"])

	status, body = s.do(http.MethodGet, "/api/devices?isActive=true", nil, bearer(admin))
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["data"].([]any), 1)
	assert.Equal(t, deviceID, body["data"].([]any)[0].(map[string]any)["id"])

	status, body = s.do(http.MethodGet, "/api/devices?isActive=maybe", nil, bearer(admin))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", body["error"])
}

func TestFaceAttendancePropagatesVendorReason(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"message":"No face detected","reason_code":"NO_FACE"}`))
	}))
	defer vendor.Close()

	s := newTestServer(t, vendor)
	admin := s.adminToken()
	_, deviceToken := s.provisionDevice(admin, "KIOSK-1")

	status, body := s.do(http.MethodPost, "/api/face/attendance", map[string]string{"image": "aGVsbG8=", "event": "in"}, deviceHeader(deviceToken))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", body["error"])
	assert.Equal(t, "NO_FACE", body["reason_code"])
	assert.Equal(t, "No face detected", body["message"])

	status, body = s.do(http.MethodPost, "/api/face/attendance", map[string]string{"image": "aGVsbG8=", "event": "lunch"}, deviceHeader(deviceToken))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", body["error"])
}
