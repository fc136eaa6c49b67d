package model

import (
	"time"

	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorAdmin  ActorType = "ADMIN"
	ActorDevice ActorType = "DEVICE"
	ActorSystem ActorType = "SYSTEM"
)

// AuditLog rows are append-only.
type AuditLog struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	ActorType ActorType      `json:"actorType" gorm:"type:varchar(20);not null;index"`
	ActorID   *uint          `json:"actorId"`
	Action    string         `json:"action" gorm:"type:varchar(100);not null;index"`
	Metadata  datatypes.JSON `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt" gorm:"not null;<-:create;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
