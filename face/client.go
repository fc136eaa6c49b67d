package face

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"punchinout.com/punchinout/apperr"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	EnrollURL     string
	AttendanceURL string
	DeviceID      string
	DeviceSecret  string
	Timeout       time.Duration
}

// VendorID accepts an identifier encoded as either a JSON string or number.
type VendorID string

func (v *VendorID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = VendorID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid vendor id: %s", string(b))
	}
	*v = VendorID(n.String())
	return nil
}

type VendorResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message,omitempty"`
	ReasonCode string   `json:"reason_code,omitempty"`
	Details    any      `json:"details,omitempty"`
	EmployeeID VendorID `json:"employee_id,omitempty"`
	ProfileID  VendorID `json:"profile_id,omitempty"`
	Decision   string   `json:"decision,omitempty"`
	MatchScore *float64 `json:"match_score,omitempty"`
	Quality    any      `json:"quality,omitempty"`

	// Raw is the undecoded vendor body.
	Raw json.RawMessage `json:"-"`
}

type enrollPayload struct {
	RequestID  string   `json:"request_id"`
	EmployeeID string   `json:"employee_id"`
	Mode       string   `json:"mode"`
	Images     []string `json:"images"`
}

type attendancePayload struct {
	RequestID    string `json:"request_id"`
	Event        string `json:"event"`
	Image        string `json:"image"`
	DeviceID     string `json:"device_id"`
	DeviceSecret string `json:"device_secret"`
	GPSLat       string `json:"gps_lat"`
	GPSLng       string `json:"gps_lng"`
	ClientTS     string `json:"client_ts"`
	EmployeeID   string `json:"employee_id,omitempty"`
}

// Client speaks the vendor's JSON enroll and attendance APIs.
type Client struct {
	transport *Transport
	cfg       Config
	now       func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{transport: NewTransport(cfg.Timeout), cfg: cfg, now: time.Now}
}

// NewRequestID returns req_<unix millis>_<8 hex chars>.
func (c *Client) NewRequestID() string {
	return "req_" + strconv.FormatInt(c.now().UnixMilli(), 10) + "_" + uuid.NewString()[:8]
}

func (c *Client) enroll(ctx context.Context, p enrollPayload) (*VendorResponse, error) {
	return c.post(ctx, c.cfg.EnrollURL, p, "Enrollment failed")
}

func (c *Client) attendance(ctx context.Context, p attendancePayload) (*VendorResponse, error) {
	p.DeviceID = c.cfg.DeviceID
	p.DeviceSecret = c.cfg.DeviceSecret
	p.ClientTS = c.now().UTC().Format(time.RFC3339Nano)
	return c.post(ctx, c.cfg.AttendanceURL, p, "Face recognition failed")
}

func (c *Client) post(ctx context.Context, url string, payload any, failure string) (*VendorResponse, error) {
	resp, err := c.transport.Post(ctx, url, payload)
	if err != nil {
		return nil, &apperr.ExternalError{Message: "face service unavailable", Err: err}
	}

	var out VendorResponse
	decodeErr := json.Unmarshal(resp.Data, &out)
	out.Raw = resp.Data

	if resp.StatusCode >= http.StatusMultipleChoices {
		message := out.Message
		if message == "" {
			message = "face service error"
		}
		return nil, &apperr.ExternalError{
			StatusCode: resp.StatusCode,
			Reason:     out.ReasonCode,
			Details:    out.Details,
			Message:    message,
		}
	}
	if decodeErr != nil {
		return nil, &apperr.ExternalError{Message: "invalid face service response", Err: decodeErr}
	}
	if !out.Success {
		message := out.Message
		if message == "" {
			message = failure
		}
		return nil, &apperr.ExternalError{
			StatusCode: http.StatusBadRequest,
			Reason:     out.ReasonCode,
			Details:    out.Details,
			Message:    message,
		}
	}
	return &out, nil
}
