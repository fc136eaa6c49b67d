package punch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/infrastructure/metrics"
	"punchinout.com/punchinout/model"
)

// Result is a punch record together with the user and device it involved.
type Result struct {
	Record *model.PunchRecord `json:"record"`
	User   *model.User        `json:"user"`
	Device *model.Device      `json:"device"`
}

// Manager drives the per-user punch state machine. Every transition runs in
// one transaction holding the user row lock, and the open_user_id unique
// index rejects a second OPEN record even where row locks are unavailable.
type Manager struct {
	dm    *core.DatabaseManager
	audit *audit.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewManager(dm *core.DatabaseManager, store *audit.Store, log *zap.Logger) *Manager {
	return &Manager{dm: dm, audit: store, log: log, now: time.Now}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func lockUser(tx *gorm.DB, userID uint) (*model.User, error) {
	var user model.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &user, nil
}

func loadDevice(tx *gorm.DB, deviceID uint) (*model.Device, error) {
	var device model.Device
	err := tx.Where("id = ?", deviceID).Take(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	return &device, nil
}

func (m *Manager) PunchIn(ctx context.Context, userID, deviceID uint) (*Result, error) {
	var result Result

	err := m.dm.Transaction(ctx, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if user.Status != model.UserActive {
			return apperr.ErrUserNotActive
		}
		device, err := loadDevice(tx, deviceID)
		if err != nil {
			return err
		}

		var open int64
		if err := tx.Model(&model.PunchRecord{}).
			Where("user_id = ? AND status = ?", user.ID, model.PunchOpen).
			Count(&open).Error; err != nil {
			return fmt.Errorf("check open punch: %w", err)
		}
		if open > 0 {
			return apperr.ErrAlreadyPunchedIn
		}

		now := m.now()
		record := model.PunchRecord{
			UserID:     user.ID,
			DeviceID:   &device.ID,
			PunchInAt:  now,
			Status:     model.PunchOpen,
			OpenUserID: &user.ID,
			CreatedAt:  now,
		}
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrAlreadyPunchedIn
			}
			return fmt.Errorf("insert punch: %w", err)
		}

		result = Result{Record: &record, User: user, Device: device}
		return m.audit.Append(tx, audit.Entry{
			Actor:    audit.DeviceActor(device.ID),
			Action:   audit.ActionPunchIn,
			Metadata: map[string]any{"punchId": record.ID, "userId": user.ID, "deviceId": device.ID},
		})
	})
	metrics.PunchTransitions.WithLabelValues("in", metrics.Result(apperr.Classify(err).Label, err)).Inc()
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PunchOut closes the user's open punch. The closing device is recorded but
// need not be the device that opened it.
func (m *Manager) PunchOut(ctx context.Context, userID, deviceID uint) (*Result, error) {
	var result Result

	err := m.dm.Transaction(ctx, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		device, err := loadDevice(tx, deviceID)
		if err != nil {
			return err
		}

		var record model.PunchRecord
		err = tx.Where("user_id = ? AND status = ?", user.ID, model.PunchOpen).
			Order("punch_in_at DESC").Order("id DESC").
			Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNoOpenSession
		}
		if err != nil {
			return fmt.Errorf("find open punch: %w", err)
		}

		now := m.now()
		status := model.PunchClosed
		var duration *int
		if minutes, ok := DurationMinutes(record.PunchInAt, now); ok {
			duration = &minutes
		} else {
			status = model.PunchInvalid
			m.log.Warn("punch out precedes punch in, marking invalid",
				zap.Uint("punchId", record.ID),
				zap.Time("punchInAt", record.PunchInAt),
				zap.Time("punchOutAt", now))
		}

		res := tx.Model(&model.PunchRecord{}).
			Where("id = ? AND status = ?", record.ID, model.PunchOpen).
			Updates(map[string]any{
				"punch_out_at":        now,
				"punch_out_device_id": device.ID,
				"duration_minutes":    duration,
				"status":              status,
				"open_user_id":        nil,
			})
		if res.Error != nil {
			return fmt.Errorf("close punch: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return apperr.ErrNoOpenSession
		}

		record.PunchOutAt = &now
		record.PunchOutDeviceID = &device.ID
		record.DurationMinutes = duration
		record.Status = status
		record.OpenUserID = nil
		result = Result{Record: &record, User: user, Device: device}

		return m.audit.Append(tx, audit.Entry{
			Actor:  audit.DeviceActor(device.ID),
			Action: audit.ActionPunchOut,
			Metadata: map[string]any{
				"punchId":          record.ID,
				"userId":           user.ID,
				"punchInDeviceId":  record.DeviceID,
				"punchOutDeviceId": device.ID,
				"status":           status,
			},
		})
	})
	metrics.PunchTransitions.WithLabelValues("out", metrics.Result(apperr.Classify(err).Label, err)).Inc()
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Invalidate is the administrative correction that moves a record of any
// state to INVALID.
func (m *Manager) Invalidate(ctx context.Context, actor audit.Actor, recordID uint, reason string) (*model.PunchRecord, error) {
	var record model.PunchRecord

	err := m.dm.Transaction(ctx, func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", recordID).Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrPunchNotFound
		}
		if err != nil {
			return fmt.Errorf("load punch: %w", err)
		}
		if record.Status == model.PunchInvalid {
			return apperr.ErrAlreadyInvalid
		}

		previous := record.Status
		if err := tx.Model(&record).Updates(map[string]any{
			"status":       model.PunchInvalid,
			"open_user_id": nil,
		}).Error; err != nil {
			return fmt.Errorf("invalidate punch: %w", err)
		}
		record.Status = model.PunchInvalid
		record.OpenUserID = nil

		return m.audit.Append(tx, audit.Entry{
			Actor:  actor,
			Action: audit.ActionPunchInvalidated,
			Metadata: map[string]any{
				"punchId":        record.ID,
				"userId":         record.UserID,
				"previousStatus": previous,
				"reason":         reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
