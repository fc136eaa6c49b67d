package model

import "time"

type PunchStatus string

const (
	PunchOpen    PunchStatus = "OPEN"
	PunchClosed  PunchStatus = "CLOSED"
	PunchInvalid PunchStatus = "INVALID"
)

type PunchRecord struct {
	ID               uint        `json:"id" gorm:"primaryKey"`
	UserID           uint        `json:"userId" gorm:"not null;index:idx_punch_user_in,priority:1"`
	User             *User       `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
	DeviceID         *uint       `json:"deviceId"`
	Device           *Device     `json:"-" gorm:"constraint:OnDelete:SET NULL"`
	PunchOutDeviceID *uint       `json:"punchOutDeviceId"`
	PunchOutDevice   *Device     `json:"-" gorm:"foreignKey:PunchOutDeviceID;constraint:OnDelete:SET NULL"`
	PunchInAt        time.Time   `json:"punchInAt" gorm:"not null;index:idx_punch_user_in,priority:2"`
	PunchOutAt       *time.Time  `json:"punchOutAt"`
	DurationMinutes  *int        `json:"durationMinutes"`
	Status           PunchStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	// OpenUserID mirrors UserID while the record is OPEN and is NULL
	// otherwise. The unique index allows at most one open record per user.
	OpenUserID *uint     `json:"-" gorm:"uniqueIndex:uq_punch_open_user"`
	CreatedAt  time.Time `json:"createdAt" gorm:"not null;<-:create"`
}

func (PunchRecord) TableName() string {
	return "punch_records"
}
