package model

import "time"

type Device struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	DeviceCode string     `json:"deviceCode" gorm:"type:varchar(100);not null;uniqueIndex"`
	Location   string     `json:"location" gorm:"type:varchar(255)"`
	IsActive   bool       `json:"isActive" gorm:"not null;default:false"`
	LastSeenAt *time.Time `json:"lastSeenAt"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"not null;<-:create"`
}

func (Device) TableName() string {
	return "devices"
}

// ActivationCode is a single-use, time-limited code that binds a kiosk to a
// pre-registered device.
type ActivationCode struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Code      string     `json:"code" gorm:"type:varchar(150);not null;uniqueIndex"`
	DeviceID  uint       `json:"deviceId" gorm:"not null;index"`
	Device    *Device    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"not null"`
	IsUsed    bool       `json:"isUsed" gorm:"not null;default:false"`
	UsedAt    *time.Time `json:"usedAt"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;<-:create"`
}

func (ActivationCode) TableName() string {
	return "activation_codes"
}
