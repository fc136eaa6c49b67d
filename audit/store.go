package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/utils"
)

const (
	ActionAdminLogin        = "ADMIN_LOGIN"
	ActionAdminLogout       = "ADMIN_LOGOUT"
	ActionDeviceCreated     = "DEVICE_CREATED"
	ActionCodeGenerated     = "ACTIVATION_CODE_GENERATED"
	ActionDeviceRedeemed    = "DEVICE_ACTIVATED_WITH_CODE"
	ActionDeviceActivated   = "DEVICE_ACTIVATED"
	ActionDeviceDeactivated = "DEVICE_DEACTIVATED"
	ActionUserCreated       = "USER_CREATED"
	ActionPunchIn           = "PUNCH_IN"
	ActionPunchOut          = "PUNCH_OUT"
	ActionPunchInvalidated  = "PUNCH_INVALIDATED"
	ActionFaceEnrolled      = "FACE_ENROLLED"
)

var ErrSessionNotFound = errors.New("session not found")

// Actor identifies who performed an audited action.
type Actor struct {
	Type model.ActorType
	ID   *uint
}

func AdminActor(id uint) Actor  { return Actor{Type: model.ActorAdmin, ID: &id} }
func DeviceActor(id uint) Actor { return Actor{Type: model.ActorDevice, ID: &id} }

var SystemActor = Actor{Type: model.ActorSystem}

type Entry struct {
	Actor    Actor
	Action   string
	Metadata map[string]any
}

type Filter struct {
	ActorType string
	Action    string
	Limit     int
	Offset    int
}

// Store persists audit entries and auth sessions.
type Store struct {
	dm  *core.DatabaseManager
	now func() time.Time
}

func NewStore(dm *core.DatabaseManager) *Store {
	return &Store{dm: dm, now: time.Now}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	cp := *s
	cp.now = now
	return &cp
}

// Append writes e using tx, so it commits or rolls back with the caller.
func (s *Store) Append(tx *gorm.DB, e Entry) error {
	row := model.AuditLog{
		ActorType: e.Actor.Type,
		ActorID:   e.Actor.ID,
		Action:    e.Action,
		CreatedAt: s.now(),
	}
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(b)
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("append audit %s: %w", e.Action, err)
	}
	return nil
}

// Record appends e outside any caller transaction.
func (s *Store) Record(ctx context.Context, e Entry) error {
	return s.dm.Exec(ctx, func(db *gorm.DB) error {
		return s.Append(db, e)
	})
}

func (s *Store) List(ctx context.Context, f Filter) ([]model.AuditLog, int64, error) {
	var rows []model.AuditLog
	var total int64

	err := s.dm.Exec(ctx, func(db *gorm.DB) error {
		q := db.Model(&model.AuditLog{})
		if f.ActorType != "" {
			q = q.Where("actor_type = ?", f.ActorType)
		}
		if f.Action != "" {
			q = q.Where("action = ?", f.Action)
		}
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		limit, offset := utils.Paging(f.Limit, f.Offset)
		return q.Order("created_at DESC").Order("id DESC").
			Limit(limit).Offset(offset).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list audit: %w", err)
	}
	return rows, total, nil
}

func (s *Store) CreateSession(ctx context.Context, subject model.SubjectType, subjectID uint, expiresAt time.Time) (*model.Session, error) {
	var session *model.Session
	err := s.dm.Exec(ctx, func(db *gorm.DB) error {
		var err error
		session, err = s.OpenSession(db, subject, subjectID, expiresAt)
		return err
	})
	return session, err
}

// OpenSession inserts a session within the caller's transaction.
func (s *Store) OpenSession(tx *gorm.DB, subject model.SubjectType, subjectID uint, expiresAt time.Time) (*model.Session, error) {
	session := model.Session{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		SubjectType: subject,
		ExpiresAt:   expiresAt,
		CreatedAt:   s.now(),
	}
	if err := tx.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

func (s *Store) FindSession(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := s.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).Take(&session).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// RevokeSession is idempotent.
func (s *Store) RevokeSession(ctx context.Context, id string) error {
	return s.dm.Exec(ctx, func(db *gorm.DB) error {
		res := db.Model(&model.Session{}).
			Where("id = ? AND revoked_at IS NULL", id).
			Update("revoked_at", s.now())
		if res.Error != nil {
			return fmt.Errorf("revoke session: %w", res.Error)
		}
		return nil
	})
}

// RevokeSubject revokes every live session of a subject.
func (s *Store) RevokeSubject(tx *gorm.DB, subject model.SubjectType, subjectID uint) error {
	return tx.Model(&model.Session{}).
		Where("subject_type = ? AND subject_id = ? AND revoked_at IS NULL", subject, subjectID).
		Update("revoked_at", s.now()).Error
}
