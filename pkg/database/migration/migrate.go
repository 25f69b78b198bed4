package migration

import (
	"fmt"

	"github.com/latoulicious/rpsync/pkg/database/models"
	"github.com/latoulicious/rpsync/pkg/logging"
	"gorm.io/gorm"
)

// RunMigration creates or updates the cloud store schema
func RunMigration(db *gorm.DB, logger logging.Logger) error {
	logger.Info("Running database migrations...", nil)

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.ProfileVersion{},
		&models.SyncLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := AddSyncLogIndexes(db); err != nil {
		return err
	}

	logger.Info("Migrations completed successfully!", nil)
	return nil
}

// Reset drops every table in the current schema
func Reset(db *gorm.DB, logger logging.Logger) error {
	logger.Warn("Resetting database...", nil)
	RollbackSyncLogIndexes(db, logger)

	if err := db.Migrator().DropTable(
		&models.ProfileVersion{},
		&models.Profile{},
		&models.SyncLog{},
	); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	logger.Info("Database reset successfully", nil)
	return nil
}
