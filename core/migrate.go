package core

import (
	"context"
	"fmt"

	"punchinout.com/punchinout/model"
)

// Migrate creates or updates every table.
func (dm *DatabaseManager) Migrate(ctx context.Context) error {
	for _, m := range model.All() {
		if err := dm.DB.WithContext(ctx).AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
	}
	return nil
}
