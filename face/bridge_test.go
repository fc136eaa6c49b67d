package face

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/core/coretest"
	"punchinout.com/punchinout/employee"
)

type vendorStub struct {
	mu       sync.Mutex
	requests []map[string]any
	status   int
	body     string
}

func (v *vendorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	v.mu.Lock()
	v.requests = append(v.requests, payload)
	v.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(v.status)
	_, _ = w.Write([]byte(v.body))
}

func (v *vendorStub) last() map[string]any {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requests[len(v.requests)-1]
}

type memoryArchive struct {
	keys []string
}

func (a *memoryArchive) Put(_ context.Context, key string, _ []byte) error {
	a.keys = append(a.keys, key)
	return nil
}

func (a *memoryArchive) List(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, k := range a.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

type fixture struct {
	bridge  *Bridge
	vendor  *vendorStub
	dir     *employee.Directory
	archive *memoryArchive
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dm := coretest.New(t)
	store := audit.NewStore(dm)
	f := &fixture{
		vendor:  &vendorStub{status: http.StatusOK, body: `{"success":true}`},
		dir:     employee.NewDirectory(dm, store),
		archive: &memoryArchive{},
	}
	f.server = httptest.NewServer(f.vendor)
	t.Cleanup(f.server.Close)

	client := NewClient(Config{
		EnrollURL:     f.server.URL + "/v1/enroll/json",
		AttendanceURL: f.server.URL + "/v1/attendance/json",
		DeviceID:      "android_001",
		DeviceSecret:  "secret_123",
	})
	f.bridge = NewBridge(client, f.dir, store, f.archive, zap.NewNop())
	return f
}

func TestEnroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.Create(ctx, audit.SystemActor, employee.CreateInput{EmployeeCode: "E001", Name: "Ada"})
	require.NoError(t, err)

	f.vendor.body = `{"success":true,"profile_id":"prof-9"}`
	result, err := f.bridge.Enroll(ctx, audit.AdminActor(1), EnrollRequest{EmployeeID: "E001", Images: []string{"aGVsbG8="}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, result.Outcome)
	require.NotNil(t, result.User)
	assert.Equal(t, "prof-9", *result.User.FaceProfileID)

	sent := f.vendor.last()
	assert.Equal(t, "E001", sent["employee_id"])
	assert.Equal(t, "replace", sent["mode"])
	assert.Regexp(t, `^req_\d+_[0-9a-f-]{8}$`, sent["request_id"])
	assert.Equal(t, result.RequestID, sent["request_id"])

	keys, err := f.bridge.ArchivedImages(ctx, "E001")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestEnrollOrphan(t *testing.T) {
	f := newFixture(t)

	result, err := f.bridge.Enroll(context.Background(), audit.AdminActor(1), EnrollRequest{EmployeeID: "GHOST", Mode: "append", Images: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOrphan, result.Outcome)
	assert.Nil(t, result.User)
	assert.Equal(t, "append", f.vendor.last()["mode"])
}

func TestEnrollValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.bridge.Enroll(ctx, audit.SystemActor, EnrollRequest{Images: []string{"x"}})
	assert.Equal(t, apperr.KindInvalid, apperr.Classify(err).Kind)

	_, err = f.bridge.Enroll(ctx, audit.SystemActor, EnrollRequest{EmployeeID: "E001"})
	assert.Equal(t, apperr.KindInvalid, apperr.Classify(err).Kind)
	assert.Empty(t, f.vendor.requests)
}

func TestVendorFailuresKeepReasonCode(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantReason string
		wantMsg    string
	}{
		{
			name:       "rejected with success false",
			status:     http.StatusOK,
			body:       `{"success":false,"message":"Image too dark","reason_code":"LOW_QUALITY","details":{"brightness":0.1}}`,
			wantStatus: http.StatusBadRequest,
			wantReason: "LOW_QUALITY",
			wantMsg:    "Image too dark",
		},
		{
			name:       "http error with payload",
			status:     http.StatusUnprocessableEntity,
			body:       `{"success":false,"reason_code":"NO_FACE"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "NO_FACE",
			wantMsg:    "face service error",
		},
		{
			name:       "success false without message",
			status:     http.StatusOK,
			body:       `{"success":false}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Face recognition failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.vendor.status = tt.status
			f.vendor.body = tt.body

			_, err := f.bridge.RecognizeAttendance(context.Background(), RecognizeRequest{Image: "x", Event: "in"})
			var ext *apperr.ExternalError
			require.ErrorAs(t, err, &ext)
			assert.Equal(t, tt.wantStatus, ext.Status())
			assert.Equal(t, tt.wantReason, ext.Reason)
			assert.Equal(t, tt.wantMsg, ext.Message)
			assert.Equal(t, apperr.KindExternal, apperr.Classify(err).Kind)
		})
	}
}

func TestVendorUnreachable(t *testing.T) {
	f := newFixture(t)
	f.server.Close()

	_, err := f.bridge.RecognizeAttendance(context.Background(), RecognizeRequest{Image: "x", Event: "out"})
	var ext *apperr.ExternalError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusBadGateway, ext.Status())
	assert.Empty(t, ext.Reason)
}

func TestRecognizeAttendance(t *testing.T) {
	f := newFixture(t)
	f.vendor.body = `{"success":true,"employee_id":1042,"decision":"MATCH","match_score":0.97,"quality":{"sharpness":0.8}}`

	result, err := f.bridge.RecognizeAttendance(context.Background(), RecognizeRequest{Image: "img", Event: "in"})
	require.NoError(t, err)
	assert.Equal(t, "1042", result.EmployeeID)
	assert.Equal(t, "MATCH", result.Decision)
	require.NotNil(t, result.MatchScore)
	assert.InDelta(t, 0.97, *result.MatchScore, 1e-9)

	sent := f.vendor.last()
	assert.Equal(t, "in", sent["event"])
	assert.Equal(t, "android_001", sent["device_id"])
	assert.Equal(t, "secret_123", sent["device_secret"])
	assert.Equal(t, "0.0", sent["gps_lat"])
	assert.Equal(t, "0.0", sent["gps_lng"])
	assert.NotEmpty(t, sent["client_ts"])
	assert.NotContains(t, sent, "employee_id")

	_, err = f.bridge.RecognizeAttendance(context.Background(), RecognizeRequest{Image: "img", Event: "lunch"})
	assert.Equal(t, apperr.KindInvalid, apperr.Classify(err).Kind)
}

func TestDecodeImage(t *testing.T) {
	assert.Equal(t, []byte("hello"), decodeImage("aGVsbG8="))
	assert.Equal(t, []byte("hello"), decodeImage("data:image/jpeg;base64,aGVsbG8="))
	assert.Equal(t, []byte("not base64!"), decodeImage("not base64!"))
}
