package model

import "time"

type SubjectType string

const (
	SubjectAdmin  SubjectType = "ADMIN"
	SubjectDevice SubjectType = "DEVICE"
)

type Session struct {
	ID          string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	SubjectID   uint        `json:"subjectId" gorm:"not null;index:idx_session_subject,priority:2"`
	SubjectType SubjectType `json:"subjectType" gorm:"type:varchar(20);not null;index:idx_session_subject,priority:1"`
	ExpiresAt   time.Time   `json:"expiresAt" gorm:"not null"`
	RevokedAt   *time.Time  `json:"revokedAt"`
	CreatedAt   time.Time   `json:"createdAt" gorm:"not null;<-:create"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) Valid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
