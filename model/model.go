package model

// All lists every table in creation order.
func All() []any {
	return []any{
		&Admin{},
		&Device{},
		&ActivationCode{},
		&User{},
		&PunchRecord{},
		&Session{},
		&AuditLog{},
	}
}
