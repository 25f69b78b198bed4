package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/latoulicious/rpsync/pkg/database/models"
	"github.com/latoulicious/rpsync/pkg/logging"
	"gorm.io/gorm"
)

// SyncLogRepository stores log entries in the sync_logs table
type SyncLogRepository struct {
	db *gorm.DB
}

var _ logging.LogRepository = (*SyncLogRepository)(nil)

// NewSyncLogRepository creates a new sync log repository
func NewSyncLogRepository(db *gorm.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// SaveLog implements logging.LogRepository
func (r *SyncLogRepository) SaveLog(entry logging.LogEntry) error {
	row := models.SyncLog{
		ID:        uuid.New(),
		Component: entry.Component,
		Level:     entry.Level,
		Message:   entry.Message,
		Error:     entry.Error,
		Fields:    entry.Fields,
		BatchID:   entry.BatchID,
		ProfileID: entry.ProfileID,
		Command:   entry.Command,
		Timestamp: time.Now().UTC(),
	}
	if row.Component == "" {
		row.Component = "sync"
	}
	return r.db.Create(&row).Error
}

// RecentForProfile returns the newest entries about one profile
func (r *SyncLogRepository) RecentForProfile(ctx context.Context, profileID string, limit int) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// ForBatch returns every entry of one upload batch in order
func (r *SyncLogRepository) ForBatch(ctx context.Context, batchID string) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("timestamp").
		Find(&logs).Error
	return logs, err
}
