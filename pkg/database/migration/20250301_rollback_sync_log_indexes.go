package migration

import (
	"github.com/latoulicious/rpsync/pkg/logging"
	"gorm.io/gorm"
)

// RollbackSyncLogIndexes drops the indexes created by AddSyncLogIndexes.
// A failed drop is logged and skipped
func RollbackSyncLogIndexes(db *gorm.DB, logger logging.Logger) {
	for _, idx := range syncLogIndexes {
		if err := db.Exec("DROP INDEX IF EXISTS " + idx.name).Error; err != nil {
			logger.Warn("Failed to drop index", map[string]interface{}{
				"index": idx.name,
				"error": err.Error(),
			})
		}
	}
}
