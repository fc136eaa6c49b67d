package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/utils"
)

type CreateInput struct {
	EmployeeCode  string
	Name          string
	Status        model.UserStatus
	FaceProfileID *string
}

type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// Directory holds the employees that punch at kiosks.
type Directory struct {
	dm    *core.DatabaseManager
	audit *audit.Store
	now   func() time.Time
}

func NewDirectory(dm *core.DatabaseManager, store *audit.Store) *Directory {
	return &Directory{dm: dm, audit: store, now: time.Now}
}

func (d *Directory) Create(ctx context.Context, actor audit.Actor, in CreateInput) (*model.User, error) {
	in.EmployeeCode = strings.TrimSpace(in.EmployeeCode)
	in.Name = strings.TrimSpace(in.Name)
	if in.EmployeeCode == "" || in.Name == "" {
		return nil, apperr.Invalid("employeeCode and name are required")
	}
	if in.Status == "" {
		in.Status = model.UserActive
	}
	if in.Status != model.UserActive && in.Status != model.UserDisabled {
		return nil, apperr.Invalid("status must be ACTIVE or DISABLED")
	}

	user := model.User{
		EmployeeCode:  in.EmployeeCode,
		Name:          in.Name,
		Status:        in.Status,
		FaceProfileID: in.FaceProfileID,
		CreatedAt:     d.now(),
	}
	err := d.dm.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrDuplicateEmployeeCode
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return d.audit.Append(tx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionUserCreated,
			Metadata: map[string]any{"userId": user.ID, "employeeCode": user.EmployeeCode},
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Directory) Get(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := d.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).Take(&user).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (d *Directory) List(ctx context.Context, f ListFilter) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	err := d.dm.Exec(ctx, func(db *gorm.DB) error {
		q := db.Model(&model.User{})
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		limit, offset := utils.Paging(f.Limit, f.Offset)
		return q.Order("id DESC").Limit(limit).Offset(offset).Find(&users).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// AttachFaceProfile links a vendor face profile to the employee with the
// given code. It returns nil without error when no such employee exists.
func (d *Directory) AttachFaceProfile(ctx context.Context, employeeCode, profileID string) (*model.User, error) {
	var user model.User
	err := d.dm.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("employee_code = ?", employeeCode).Take(&user).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("face_profile_id", profileID).Error; err != nil {
			return err
		}
		user.FaceProfileID = &profileID
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("attach face profile: %w", err)
	}
	return &user, nil
}
