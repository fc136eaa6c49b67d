package auth

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"punchinout.com/punchinout/model"
)

// EnsureAdmin creates the admin account when no admin with that email
// exists. It reports whether a row was created.
func (v *Verifier) EnsureAdmin(ctx context.Context, email, password string, role model.AdminRole) (bool, error) {
	email = normalizeEmail(email)

	var existing model.Admin
	err := v.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Where("email = ?", email).Take(&existing).Error
	})
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := v.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	admin := model.Admin{Email: email, PasswordHash: hash, Role: role, CreatedAt: v.now()}
	if err := v.dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Create(&admin).Error
	}); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
