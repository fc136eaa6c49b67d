package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/utils"
)

const DefaultCodeTTL = 24 * time.Hour

// Notifier receives device lifecycle messages after they commit.
type Notifier interface {
	Info(ctx context.Context, message string) error
}

type CreateInput struct {
	DeviceCode string
	Location   string
	IsActive   bool
}

type ListFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}

// Registry manages kiosk devices and their activation codes.
type Registry struct {
	dm       *core.DatabaseManager
	audit    *audit.Store
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
	random   io.Reader
	codeTTL  time.Duration
}

func NewRegistry(dm *core.DatabaseManager, store *audit.Store, notifier Notifier, log *zap.Logger) *Registry {
	return &Registry{
		dm:       dm,
		audit:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		random:   rand.Reader,
		codeTTL:  DefaultCodeTTL,
	}
}

func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// newCode builds "<deviceCode>-<8 upper hex>".
func (r *Registry) newCode(deviceCode string) (string, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(r.random, b); err != nil {
		return "", fmt.Errorf("generate activation code: %w", err)
	}
	return deviceCode + "-" + strings.ToUpper(hex.EncodeToString(b)), nil
}

func (r *Registry) insertCode(tx *gorm.DB, device *model.Device) (*model.ActivationCode, error) {
	code, err := r.newCode(device.DeviceCode)
	if err != nil {
		return nil, err
	}
	now := r.now()
	ac := model.ActivationCode{
		Code:      code,
		DeviceID:  device.ID,
		ExpiresAt: now.Add(r.codeTTL),
		CreatedAt: now,
	}
	if err := tx.Create(&ac).Error; err != nil {
		return nil, fmt.Errorf("insert activation code: %w", err)
	}
	return &ac, nil
}

func (r *Registry) CreateDevice(ctx context.Context, actor audit.Actor, in CreateInput) (*model.Device, *model.ActivationCode, error) {
	in.DeviceCode = strings.TrimSpace(in.DeviceCode)
	if in.DeviceCode == "" {
		return nil, nil, apperr.Invalid("deviceCode is required")
	}

	device := model.Device{
		DeviceCode: in.DeviceCode,
		Location:   strings.TrimSpace(in.Location),
		IsActive:   in.IsActive,
		CreatedAt:  r.now(),
	}
	var code *model.ActivationCode

	err := r.dm.Transaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Device{}).Where("device_code = ?", device.DeviceCode).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.ErrDuplicateDeviceCode
		}

		if err := tx.Create(&device).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrDuplicateDeviceCode
			}
			return fmt.Errorf("insert device: %w", err)
		}

		var err error
		if code, err = r.insertCode(tx, &device); err != nil {
			return err
		}

		return r.audit.Append(tx, audit.Entry{
			Actor:  actor,
			Action: audit.ActionDeviceCreated,
			Metadata: map[string]any{
				"deviceId":   device.ID,
				"deviceCode": device.DeviceCode,
				"location":   device.Location,
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return &device, code, nil
}

// GenerateActivationCode replaces every unused code of the device with a
// fresh one.
func (r *Registry) GenerateActivationCode(ctx context.Context, actor audit.Actor, deviceID uint) (*model.ActivationCode, error) {
	var code *model.ActivationCode

	err := r.dm.Transaction(ctx, func(tx *gorm.DB) error {
		var device model.Device
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", deviceID).Take(&device).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrDeviceNotFound
			}
			return err
		}

		if err := tx.Where("device_id = ? AND is_used = ?", device.ID, false).Delete(&model.ActivationCode{}).Error; err != nil {
			return fmt.Errorf("delete unused codes: %w", err)
		}

		var err error
		if code, err = r.insertCode(tx, &device); err != nil {
			return err
		}

		return r.audit.Append(tx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionCodeGenerated,
			Metadata: map[string]any{"deviceId": device.ID, "deviceCode": device.DeviceCode},
		})
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// ActivationHook runs inside the redemption transaction once the device is
// active and its old sessions are revoked. An error rolls the redemption back.
type ActivationHook func(tx *gorm.DB, device *model.Device) error

// ActivateByCode redeems a code and activates its device. The code row is
// locked so concurrent redemptions of the same code serialize.
func (r *Registry) ActivateByCode(ctx context.Context, code string, hooks ...ActivationHook) (*model.Device, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Invalid("activationCode is required")
	}

	var device model.Device
	now := r.now()

	err := r.dm.Transaction(ctx, func(tx *gorm.DB) error {
		var ac model.ActivationCode
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("code = ?", code).Take(&ac).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrCodeNotFound
			}
			return err
		}
		if ac.IsUsed {
			return apperr.ErrCodeAlreadyUsed
		}
		if now.After(ac.ExpiresAt) {
			return apperr.ErrCodeExpired
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", ac.DeviceID).Take(&device).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrDeviceNotFound
			}
			return err
		}

		res := tx.Model(&model.ActivationCode{}).
			Where("id = ? AND is_used = ?", ac.ID, false).
			Updates(map[string]any{"is_used": true, "used_at": now})
		if res.Error != nil {
			return fmt.Errorf("mark code used: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return apperr.ErrCodeAlreadyUsed
		}

		if err := tx.Model(&device).Updates(map[string]any{"is_active": true, "last_seen_at": now}).Error; err != nil {
			return fmt.Errorf("activate device: %w", err)
		}
		device.IsActive = true
		device.LastSeenAt = &now

		// tokens minted for a previous install of this kiosk stop working
		if err := r.audit.RevokeSubject(tx, model.SubjectDevice, device.ID); err != nil {
			return fmt.Errorf("revoke device sessions: %w", err)
		}
		for _, hook := range hooks {
			if err := hook(tx, &device); err != nil {
				return err
			}
		}

		return r.audit.Append(tx, audit.Entry{
			Actor:    audit.DeviceActor(device.ID),
			Action:   audit.ActionDeviceRedeemed,
			Metadata: map[string]any{"deviceCode": device.DeviceCode, "activationCodeId": ac.ID},
		})
	})
	if err != nil {
		return nil, err
	}

	r.notify(ctx, fmt.Sprintf("Device %s (%s) activated with code", device.DeviceCode, device.Location))
	return &device, nil
}

func (r *Registry) ActivateDevice(ctx context.Context, actor audit.Actor, deviceCode string) (*model.Device, error) {
	return r.setActive(ctx, actor, deviceCode, true)
}

func (r *Registry) DeactivateDevice(ctx context.Context, actor audit.Actor, deviceCode string) (*model.Device, error) {
	return r.setActive(ctx, actor, deviceCode, false)
}

func (r *Registry) setActive(ctx context.Context, actor audit.Actor, deviceCode string, active bool) (*model.Device, error) {
	var device model.Device
	now := r.now()

	err := r.dm.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("device_code = ?", strings.TrimSpace(deviceCode)).Take(&device).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrDeviceNotFound
			}
			return err
		}

		if device.IsActive == active {
			if active {
				return apperr.ErrAlreadyActive
			}
			return apperr.ErrAlreadyInactive
		}

		updates := map[string]any{"is_active": active}
		if active {
			updates["last_seen_at"] = now
			device.LastSeenAt = &now
		}
		if err := tx.Model(&device).Updates(updates).Error; err != nil {
			return fmt.Errorf("update device: %w", err)
		}
		device.IsActive = active

		action := audit.ActionDeviceDeactivated
		if active {
			action = audit.ActionDeviceActivated
		}
		return r.audit.Append(tx, audit.Entry{
			Actor:    actor,
			Action:   action,
			Metadata: map[string]any{"deviceId": device.ID, "deviceCode": device.DeviceCode},
		})
	})
	if err != nil {
		return nil, err
	}

	r.notify(ctx, fmt.Sprintf("Device %s (%s) %s", device.DeviceCode, device.Location, utils.FormatBoolean(active, "activated", "deactivated")))
	return &device, nil
}

func (r *Registry) ListDevices(ctx context.Context, f ListFilter) ([]model.Device, int64, error) {
	var devices []model.Device
	var total int64

	err := r.dm.Exec(ctx, func(db *gorm.DB) error {
		q := db.Model(&model.Device{})
		if f.IsActive != nil {
			q = q.Where("is_active = ?", *f.IsActive)
		}
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		limit, offset := utils.Paging(f.Limit, f.Offset)
		return q.Order("id DESC").Limit(limit).Offset(offset).Find(&devices).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list devices: %w", err)
	}
	return devices, total, nil
}

func (r *Registry) GetDevice(ctx context.Context, id uint) (*model.Device, error) {
	var device model.Device
	err := r.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).Take(&device).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &device, nil
}

func (r *Registry) notify(ctx context.Context, message string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Info(ctx, message); err != nil {
		r.log.Warn("failed to send device notification", zap.Error(err))
	}
}
