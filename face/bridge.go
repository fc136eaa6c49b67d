package face

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/infrastructure/metrics"
	"punchinout.com/punchinout/model"
)

const DefaultMode = "replace"

type Outcome string

const (
	OutcomeEnrolled Outcome = "ENROLLED"
	// OutcomeOrphan means the vendor accepted the face but no local employee
	// has that code.
	OutcomeOrphan Outcome = "ORPHAN"
)

// ProfileLinker stores the vendor profile reference on an employee.
type ProfileLinker interface {
	AttachFaceProfile(ctx context.Context, employeeCode, profileID string) (*model.User, error)
}

// ImageArchive keeps a copy of enrollment images.
type ImageArchive interface {
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

type EnrollRequest struct {
	EmployeeID string
	Mode       string
	Images     []string
}

type EnrollResult struct {
	RequestID string          `json:"requestId"`
	Outcome   Outcome         `json:"outcome"`
	Message   string          `json:"message"`
	User      *model.User     `json:"user,omitempty"`
	Vendor    *VendorResponse `json:"vendor"`
}

type RecognizeRequest struct {
	Image      string
	Event      string
	GPSLat     string
	GPSLng     string
	EmployeeID string
}

type RecognitionResult struct {
	RequestID  string          `json:"requestId"`
	EmployeeID string          `json:"employeeId"`
	Decision   string          `json:"decision"`
	MatchScore *float64        `json:"matchScore"`
	Quality    any             `json:"quality,omitempty"`
	Vendor     *VendorResponse `json:"vendor"`
}

// Bridge maps local employees onto the vendor's face profiles. It never
// records punches itself.
type Bridge struct {
	client  *Client
	users   ProfileLinker
	audit   *audit.Store
	archive ImageArchive
	log     *zap.Logger
}

// NewBridge builds a bridge. archive may be nil.
func NewBridge(client *Client, users ProfileLinker, store *audit.Store, archive ImageArchive, log *zap.Logger) *Bridge {
	return &Bridge{client: client, users: users, audit: store, archive: archive, log: log}
}

func (b *Bridge) Enroll(ctx context.Context, actor audit.Actor, req EnrollRequest) (*EnrollResult, error) {
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if req.EmployeeID == "" {
		return nil, apperr.Invalid("employee_id is required")
	}
	if len(req.Images) == 0 {
		return nil, apperr.Invalid("images array is required and must not be empty")
	}
	if req.Mode == "" {
		req.Mode = DefaultMode
	}

	requestID := b.client.NewRequestID()
	log := b.log.With(zap.String("request_id", requestID), zap.String("employee_id", req.EmployeeID))
	log.Info("face enroll", zap.String("mode", req.Mode), zap.Int("images", len(req.Images)))

	vendor, err := b.client.enroll(ctx, enrollPayload{
		RequestID:  requestID,
		EmployeeID: req.EmployeeID,
		Mode:       req.Mode,
		Images:     req.Images,
	})
	metrics.FaceRequests.WithLabelValues("enroll", metrics.Result("vendor_error", err)).Inc()
	if err != nil {
		log.Warn("face enroll rejected", zap.Error(err))
		return nil, err
	}

	profileID := string(vendor.ProfileID)
	if profileID == "" {
		profileID = req.EmployeeID
	}
	user, err := b.users.AttachFaceProfile(ctx, req.EmployeeID, profileID)
	if err != nil {
		return nil, err
	}

	result := &EnrollResult{RequestID: requestID, Vendor: vendor, User: user}
	if user == nil {
		result.Outcome = OutcomeOrphan
		result.Message = "Face enrolled with the vendor, but employee not found in local database"
		log.Warn("face enrolled for unknown employee")
	} else {
		result.Outcome = OutcomeEnrolled
		result.Message = "Employee enrolled successfully"
	}

	b.archiveImages(ctx, log, req.EmployeeID, requestID, req.Images)

	if err := b.audit.Record(ctx, audit.Entry{
		Actor:  actor,
		Action: audit.ActionFaceEnrolled,
		Metadata: map[string]any{
			"requestId":  requestID,
			"employeeId": req.EmployeeID,
			"outcome":    result.Outcome,
			"mode":       req.Mode,
		},
	}); err != nil {
		log.Warn("failed to audit face enroll", zap.Error(err))
	}
	return result, nil
}

func (b *Bridge) RecognizeAttendance(ctx context.Context, req RecognizeRequest) (*RecognitionResult, error) {
	if req.Image == "" {
		return nil, apperr.Invalid("image is required")
	}
	if req.Event != "in" && req.Event != "out" {
		return nil, apperr.Invalid(`event must be "in" or "out"`)
	}
	if req.GPSLat == "" {
		req.GPSLat = "0.0"
	}
	if req.GPSLng == "" {
		req.GPSLng = "0.0"
	}

	requestID := b.client.NewRequestID()
	vendor, err := b.client.attendance(ctx, attendancePayload{
		RequestID:  requestID,
		Event:      req.Event,
		Image:      req.Image,
		GPSLat:     req.GPSLat,
		GPSLng:     req.GPSLng,
		EmployeeID: req.EmployeeID,
	})
	metrics.FaceRequests.WithLabelValues("attendance", metrics.Result("vendor_error", err)).Inc()
	if err != nil {
		b.log.Warn("face attendance rejected", zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}

	return &RecognitionResult{
		RequestID:  requestID,
		EmployeeID: string(vendor.EmployeeID),
		Decision:   vendor.Decision,
		MatchScore: vendor.MatchScore,
		Quality:    vendor.Quality,
		Vendor:     vendor,
	}, nil
}

// ArchivedImages lists the stored enrollment images of an employee.
func (b *Bridge) ArchivedImages(ctx context.Context, employeeID string) ([]string, error) {
	if b.archive == nil {
		return []string{}, nil
	}
	keys, err := b.archive.List(ctx, archivePrefix(employeeID))
	if err != nil {
		return nil, fmt.Errorf("list archived images: %w", err)
	}
	return keys, nil
}

func archivePrefix(employeeID string) string {
	return path.Join("enrollments", employeeID) + "/"
}

// archiveImages is best effort; a failed upload never fails the enrollment.
func (b *Bridge) archiveImages(ctx context.Context, log *zap.Logger, employeeID, requestID string, images []string) {
	if b.archive == nil {
		return
	}
	for i, img := range images {
		key := fmt.Sprintf("%s%s-%d.jpg", archivePrefix(employeeID), requestID, i)
		if err := b.archive.Put(ctx, key, decodeImage(img)); err != nil {
			log.Warn("failed to archive enrollment image", zap.String("key", key), zap.Error(err))
		}
	}
}

// decodeImage strips an optional data URI header and decodes base64. Input
// that is not base64 is stored as is.
func decodeImage(img string) []byte {
	if i := strings.Index(img, ";base64,"); i >= 0 && strings.HasPrefix(img, "data:") {
		img = img[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(img)
	if err != nil {
		return []byte(img)
	}
	return data
}
