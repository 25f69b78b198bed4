package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncLog is a persisted log entry from the sync pipeline or a command
type SyncLog struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	Component string                 `gorm:"size:50;index;not null;default:'sync'" json:"component"` // "sync", "gateway", "commands", ...
	Level     string                 `gorm:"size:10;index;not null" json:"level"`                    // INFO, ERROR, WARN
	Message   string                 `gorm:"type:text;not null" json:"message"`
	Error     string                 `gorm:"type:text" json:"error"`
	Fields    map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"fields"`
	BatchID   string                 `gorm:"size:64;index" json:"batch_id"`
	ProfileID string                 `gorm:"size:64;index" json:"profile_id"`
	Command   string                 `gorm:"size:50;index" json:"command"`
	Timestamp time.Time              `gorm:"index;not null" json:"timestamp"`
}

// TableName returns the table name for SyncLog
func (SyncLog) TableName() string {
	return "sync_logs"
}
