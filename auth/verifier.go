package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/infrastructure/metrics"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/security"
)

const (
	DefaultAdminTTL  = 24 * time.Hour
	DefaultDeviceTTL = 30 * 24 * time.Hour
)

type Options struct {
	AdminTTL  time.Duration
	DeviceTTL time.Duration
}

type SignedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	SessionID string    `json:"-"`
}

type AdminPrincipal struct {
	Admin     *model.Admin
	SessionID string
}

type DevicePrincipal struct {
	Device    *model.Device
	SessionID string
}

// Verifier checks admin credentials and issues/validates admin and device
// tokens. Every token is backed by a Session row so it can be revoked.
type Verifier struct {
	dm       *core.DatabaseManager
	signer   *security.Signer
	hasher   security.PasswordHasher
	sessions *audit.Store
	log      *zap.Logger
	opts     Options
	now      func() time.Time

	// compared against when the email is unknown, so both credential
	// failures cost one bcrypt comparison
	dummyHash string
}

func NewVerifier(dm *core.DatabaseManager, signer *security.Signer, hasher security.PasswordHasher, sessions *audit.Store, log *zap.Logger, opts Options) *Verifier {
	if opts.AdminTTL <= 0 {
		opts.AdminTTL = DefaultAdminTTL
	}
	if opts.DeviceTTL <= 0 {
		opts.DeviceTTL = DefaultDeviceTTL
	}
	dummyHash, err := hasher.Hash("punchinout-dummy-password")
	if err != nil {
		log.Error("failed to build dummy hash", zap.Error(err))
	}
	return &Verifier{
		dm:        dm,
		signer:    signer,
		hasher:    hasher,
		sessions:  sessions,
		log:       log,
		opts:      opts,
		now:       time.Now,
		dummyHash: dummyHash,
	}
}

func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (v *Verifier) VerifyAdminCredentials(ctx context.Context, email, password string) (*model.Admin, error) {
	var admin model.Admin
	err := v.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Where("email = ?", normalizeEmail(email)).Take(&admin).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = v.hasher.Compare(v.dummyHash, password)
		metrics.AuthFailures.WithLabelValues("admin", "credentials").Inc()
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	if err := v.hasher.Compare(admin.PasswordHash, password); err != nil {
		metrics.AuthFailures.WithLabelValues("admin", "credentials").Inc()
		return nil, apperr.ErrInvalidCredentials
	}
	return &admin, nil
}

func (v *Verifier) IssueAdminToken(ctx context.Context, admin *model.Admin) (*SignedToken, error) {
	session, err := v.sessions.CreateSession(ctx, model.SubjectAdmin, admin.ID, v.now().Add(v.opts.AdminTTL))
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := v.signer.SignAdmin(security.AdminIdentity{
		AdminID: admin.ID,
		Email:   admin.Email,
		Role:    string(admin.Role),
		SID:     session.ID,
	}, v.opts.AdminTTL)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}

	if err := v.sessions.Record(ctx, audit.Entry{
		Actor:    audit.AdminActor(admin.ID),
		Action:   audit.ActionAdminLogin,
		Metadata: map[string]any{"sessionId": session.ID},
	}); err != nil {
		v.log.Warn("failed to audit admin login", zap.Uint("adminId", admin.ID), zap.Error(err))
	}

	return &SignedToken{Token: token, ExpiresAt: expiresAt, SessionID: session.ID}, nil
}

// Login verifies credentials and issues a token in one step.
func (v *Verifier) Login(ctx context.Context, email, password string) (*model.Admin, *SignedToken, error) {
	admin, err := v.VerifyAdminCredentials(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	token, err := v.IssueAdminToken(ctx, admin)
	if err != nil {
		return nil, nil, err
	}
	return admin, token, nil
}

func (v *Verifier) VerifyAdminToken(ctx context.Context, tokenStr string) (*AdminPrincipal, error) {
	claims, err := v.signer.ParseAdmin(tokenStr)
	if errors.Is(err, security.ErrTokenExpired) {
		metrics.AuthFailures.WithLabelValues("admin", "expired").Inc()
		return nil, apperr.ErrTokenExpired
	}
	if err != nil {
		metrics.AuthFailures.WithLabelValues("admin", "invalid").Inc()
		return nil, apperr.ErrInvalidToken
	}

	if err := v.checkSession(ctx, claims.SID, model.SubjectAdmin, claims.AdminID); err != nil {
		metrics.AuthFailures.WithLabelValues("admin", "session").Inc()
		if errors.Is(err, audit.ErrSessionNotFound) || errors.Is(err, apperr.ErrSessionRevoked) {
			return nil, apperr.ErrSessionRevoked
		}
		return nil, err
	}

	var admin model.Admin
	err = v.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", claims.AdminID).Take(&admin).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	return &AdminPrincipal{Admin: &admin, SessionID: claims.SID}, nil
}

func (v *Verifier) IssueDeviceToken(ctx context.Context, device *model.Device) (*SignedToken, error) {
	session, err := v.sessions.CreateSession(ctx, model.SubjectDevice, device.ID, v.now().Add(v.opts.DeviceTTL))
	if err != nil {
		return nil, err
	}
	return v.SignDeviceSession(device, session)
}

// OpenDeviceSession inserts the session backing a device token inside tx.
// Sign it with SignDeviceSession once tx has committed.
func (v *Verifier) OpenDeviceSession(tx *gorm.DB, device *model.Device) (*model.Session, error) {
	return v.sessions.OpenSession(tx, model.SubjectDevice, device.ID, v.now().Add(v.opts.DeviceTTL))
}

func (v *Verifier) SignDeviceSession(device *model.Device, session *model.Session) (*SignedToken, error) {
	token, expiresAt, err := v.signer.SignDevice(security.DeviceIdentity{
		DeviceID:   device.ID,
		DeviceCode: device.DeviceCode,
		SID:        session.ID,
	}, v.opts.DeviceTTL)
	if err != nil {
		return nil, fmt.Errorf("sign device token: %w", err)
	}
	return &SignedToken{Token: token, ExpiresAt: expiresAt, SessionID: session.ID}, nil
}

// VerifyDeviceToken resolves a device token into an active device. The token
// is checked first, then the backing session, then the device row.
func (v *Verifier) VerifyDeviceToken(ctx context.Context, tokenStr string) (*DevicePrincipal, error) {
	claims, err := v.signer.ParseDevice(tokenStr)
	if errors.Is(err, security.ErrTokenExpired) {
		metrics.AuthFailures.WithLabelValues("device", "expired").Inc()
		return nil, apperr.ErrDeviceTokenExpired
	}
	if err != nil {
		metrics.AuthFailures.WithLabelValues("device", "invalid").Inc()
		return nil, apperr.ErrInvalidDeviceToken
	}

	if err := v.checkSession(ctx, claims.SID, model.SubjectDevice, claims.DeviceID); err != nil {
		metrics.AuthFailures.WithLabelValues("device", "session").Inc()
		if errors.Is(err, audit.ErrSessionNotFound) || errors.Is(err, apperr.ErrSessionRevoked) {
			return nil, apperr.ErrInvalidDeviceToken
		}
		return nil, err
	}

	var device model.Device
	err = v.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", claims.DeviceID).Take(&device).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthFailures.WithLabelValues("device", "not_found").Inc()
		return nil, apperr.ErrUnknownDevice
	}
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	if !device.IsActive {
		metrics.AuthFailures.WithLabelValues("device", "inactive").Inc()
		return nil, apperr.ErrDeviceInactive
	}

	v.touch(ctx, &device)
	return &DevicePrincipal{Device: &device, SessionID: claims.SID}, nil
}

// touch records the heartbeat. Failures are logged and never fail the caller.
func (v *Verifier) touch(ctx context.Context, device *model.Device) {
	now := v.now()
	err := v.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Model(&model.Device{}).Where("id = ?", device.ID).Update("last_seen_at", now).Error
	})
	if err != nil {
		v.log.Warn("failed to update device last seen", zap.Uint("deviceId", device.ID), zap.Error(err))
		return
	}
	device.LastSeenAt = &now
}

func (v *Verifier) checkSession(ctx context.Context, sid string, subject model.SubjectType, subjectID uint) error {
	if sid == "" {
		return apperr.ErrSessionRevoked
	}
	session, err := v.sessions.FindSession(ctx, sid)
	if err != nil {
		return err
	}
	if session.SubjectType != subject || session.SubjectID != subjectID || !session.Valid(v.now()) {
		return apperr.ErrSessionRevoked
	}
	return nil
}

// Logout revokes the admin session behind the current token.
func (v *Verifier) Logout(ctx context.Context, principal *AdminPrincipal) error {
	if err := v.sessions.RevokeSession(ctx, principal.SessionID); err != nil {
		return err
	}
	if err := v.sessions.Record(ctx, audit.Entry{
		Actor:    audit.AdminActor(principal.Admin.ID),
		Action:   audit.ActionAdminLogout,
		Metadata: map[string]any{"sessionId": principal.SessionID},
	}); err != nil {
		v.log.Warn("failed to audit admin logout", zap.Uint("adminId", principal.Admin.ID), zap.Error(err))
	}
	return nil
}
