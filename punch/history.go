package punch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/utils"
)

type HistoryFilter struct {
	Status string
	// From is inclusive, To exclusive. Both apply to punch_in_at.
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type HistoryEntry struct {
	ID                 uint              `json:"id"`
	UserID             uint              `json:"userId"`
	DeviceID           *uint             `json:"deviceId"`
	PunchOutDeviceID   *uint             `json:"punchOutDeviceId"`
	PunchInAt          time.Time         `json:"punchInAt"`
	PunchOutAt         *time.Time        `json:"punchOutAt"`
	DurationMinutes    *int              `json:"durationMinutes"`
	Status             model.PunchStatus `json:"status"`
	UserName           string            `json:"userName"`
	EmployeeCode       string            `json:"employeeCode"`
	DeviceCode         *string           `json:"deviceCode"`
	Location           *string           `json:"location"`
	PunchOutDeviceCode *string           `json:"punchOutDeviceCode"`
}

func (f HistoryFilter) apply(q *gorm.DB, userID uint) *gorm.DB {
	q = q.Where("p.user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("p.status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("p.punch_in_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("p.punch_in_at < ?", *f.To)
	}
	return q
}

// History lists a user's punches, newest first.
func (m *Manager) History(ctx context.Context, userID uint, f HistoryFilter) ([]HistoryEntry, int64, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, apperr.Invalid("status must be OPEN, CLOSED or INVALID")
	}

	var entries []HistoryEntry
	var total int64

	err := m.dm.Exec(ctx, func(db *gorm.DB) error {
		var exists int64
		if err := db.Model(&model.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return apperr.ErrUserNotFound
		}

		if err := f.apply(db.Table("punch_records AS p"), userID).Count(&total).Error; err != nil {
			return err
		}

		limit, offset := utils.Paging(f.Limit, f.Offset)
		return f.apply(db.Table("punch_records AS p"), userID).
			Select(`p.id, p.user_id, p.device_id, p.punch_out_device_id,
				p.punch_in_at, p.punch_out_at, p.duration_minutes, p.status,
				u.name AS user_name, u.employee_code,
				din.device_code AS device_code, din.location AS location,
				dout.device_code AS punch_out_device_code`).
			Joins("JOIN users u ON u.id = p.user_id").
			Joins("LEFT JOIN devices din ON din.id = p.device_id").
			Joins("LEFT JOIN devices dout ON dout.id = p.punch_out_device_id").
			Order("p.punch_in_at DESC").Order("p.id DESC").
			Limit(limit).Offset(offset).
			Scan(&entries).Error
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("punch history: %w", err)
	}
	return entries, total, nil
}

func validStatus(s string) bool {
	return utils.Contains([]model.PunchStatus{model.PunchOpen, model.PunchClosed, model.PunchInvalid}, model.PunchStatus(s))
}
