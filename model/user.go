package model

import "time"

type UserStatus string

const (
	UserActive   UserStatus = "ACTIVE"
	UserDisabled UserStatus = "DISABLED"
)

// User is an employee who punches in and out at kiosks.
type User struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	EmployeeCode  string     `json:"employeeCode" gorm:"type:varchar(100);not null;uniqueIndex"`
	Name          string     `json:"name" gorm:"type:varchar(255);not null"`
	Status        UserStatus `json:"status" gorm:"type:varchar(20);not null;default:ACTIVE"`
	FaceProfileID *string    `json:"faceProfileId" gorm:"type:varchar(255)"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"not null;<-:create"`
}

func (User) TableName() string {
	return "users"
}
