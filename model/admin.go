package model

import "time"

type AdminRole string

const (
	RoleSuperAdmin AdminRole = "SUPER_ADMIN"
	RoleAdmin      AdminRole = "ADMIN"
)

type Admin struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Role         AdminRole `json:"role" gorm:"type:varchar(20);not null;default:ADMIN"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null;<-:create"`
}

func (Admin) TableName() string {
	return "admins"
}
