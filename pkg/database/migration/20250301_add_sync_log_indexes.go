package migration

import (
	"fmt"

	"gorm.io/gorm"
)

var syncLogIndexes = []struct {
	name string
	ddl  string
}{
	// history of one profile across batches
	{"idx_sync_logs_profile_time", "CREATE INDEX IF NOT EXISTS idx_sync_logs_profile_time ON sync_logs(profile_id, timestamp DESC) WHERE profile_id <> ''"},
	// all entries of one batch in order
	{"idx_sync_logs_batch_time", "CREATE INDEX IF NOT EXISTS idx_sync_logs_batch_time ON sync_logs(batch_id, timestamp) WHERE batch_id <> ''"},
	{"idx_sync_logs_component_level", "CREATE INDEX IF NOT EXISTS idx_sync_logs_component_level ON sync_logs(component, level)"},
}

// AddSyncLogIndexes creates the composite indexes used to browse sync logs
func AddSyncLogIndexes(db *gorm.DB) error {
	for _, idx := range syncLogIndexes {
		if err := db.Exec(idx.ddl).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}
	return nil
}
