package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/latoulicious/rpsync/pkg/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository is the postgres cloud store. Every query is scoped to
// one user
type ProfileRepository struct {
	db          *gorm.DB
	userID      string
	maxVersions int
}

var _ cloud.Gateway = (*ProfileRepository)(nil)

// NewProfileRepository creates a store for userID keeping at most
// maxVersions history rows per profile
func NewProfileRepository(db *gorm.DB, userID string, maxVersions int) *ProfileRepository {
	if maxVersions <= 0 {
		maxVersions = cloud.DefaultMaxVersions
	}
	return &ProfileRepository{db: db, userID: userID, maxVersions: maxVersions}
}

// ListProfiles returns the user's profiles ordered by id
func (r *ProfileRepository) ListProfiles(ctx context.Context) ([]cloud.CloudProfile, error) {
	var rows []models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", r.userID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	out := make([]cloud.CloudProfile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToCloud())
	}
	return out, nil
}

// GetProfile returns one profile or cloud.ErrNotFound
func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*cloud.CloudProfile, error) {
	row, err := r.find(r.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	p := row.ToCloud()
	return &p, nil
}

// CreateProfile inserts a profile at version 1. An existing id fails with
// cloud.ErrAlreadyExists
func (r *ProfileRepository) CreateProfile(ctx context.Context, data cloud.ProfileData) (*cloud.CloudProfile, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	row := models.Profile{
		ID:          data.ID,
		UserID:      r.userID,
		AccountID:   data.AccountID,
		ProfileName: data.ProfileName,
		RawLua:      data.RawLua,
		Checksum:    data.Checksum,
		Version:     1,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", cloud.ErrAlreadyExists, data.ID)
		}
		return nil, fmt.Errorf("failed to create profile %s: %w", data.ID, err)
	}

	p := row.ToCloud()
	return &p, nil
}

// UpdateProfile snapshots the current content and overwrites it in one
// transaction. A missing profile fails before anything is written
func (r *ProfileRepository) UpdateProfile(ctx context.Context, id string, data cloud.ProfileData) (*cloud.CloudProfile, error) {
	var row *models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = r.find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
		if err != nil {
			return err
		}

		if err := r.snapshot(tx, row, ""); err != nil {
			return err
		}

		row.ProfileName = data.ProfileName
		row.RawLua = data.RawLua
		row.Checksum = data.Checksum
		row.Version++
		return tx.Save(row).Error
	})
	if err != nil {
		return nil, wrap("update", id, err)
	}

	p := row.ToCloud()
	return &p, nil
}

// DeleteProfile removes a profile together with its history
func (r *ProfileRepository) DeleteProfile(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, r.userID).Delete(&models.Profile{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", cloud.ErrNotFound, id)
		}
		return tx.Where("profile_id = ?", id).Delete(&models.ProfileVersion{}).Error
	})
	if err != nil {
		return wrap("delete", id, err)
	}
	return nil
}

// GetVersions returns the kept history, newest first
func (r *ProfileRepository) GetVersions(ctx context.Context, id string) ([]cloud.ProfileVersion, error) {
	db := r.db.WithContext(ctx)
	if _, err := r.find(db, id); err != nil {
		return nil, err
	}

	var rows []models.ProfileVersion
	err := db.Where("profile_id = ?", id).
		Order("version DESC").
		Limit(r.maxVersions).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", id, err)
	}

	out := make([]cloud.ProfileVersion, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToCloud())
	}
	return out, nil
}

// Rollback restores the content of a kept version. The current content is
// snapshotted first with cloud.RollbackChangeLog, and the profile version is
// bumped rather than reset
func (r *ProfileRepository) Rollback(ctx context.Context, id string, version int) (*cloud.CloudProfile, error) {
	var row *models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = r.find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
		if err != nil {
			return err
		}

		var target models.ProfileVersion
		err = tx.Where("profile_id = ? AND version = ?", id, version).First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s@%d", cloud.ErrVersionNotFound, id, version)
		}
		if err != nil {
			return err
		}

		if err := r.snapshot(tx, row, cloud.RollbackChangeLog); err != nil {
			return err
		}

		row.RawLua = target.RawLua
		row.Checksum = target.Checksum
		row.Version++
		return tx.Save(row).Error
	})
	if err != nil {
		return nil, wrap("roll back", id, err)
	}

	p := row.ToCloud()
	return &p, nil
}

func (r *ProfileRepository) find(db *gorm.DB, id string) (*models.Profile, error) {
	var row models.Profile
	err := db.Where("id = ? AND user_id = ?", id, r.userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", cloud.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", id, err)
	}
	return &row, nil
}

// snapshot stores row's current content as a version and trims history
func (r *ProfileRepository) snapshot(tx *gorm.DB, row *models.Profile, changeLog string) error {
	v := models.ProfileVersion{
		ProfileID: row.ID,
		Version:   row.Version,
		RawLua:    row.RawLua,
		Checksum:  row.Checksum,
		ChangeLog: changeLog,
	}
	if err := tx.Create(&v).Error; err != nil {
		return fmt.Errorf("failed to save version %d: %w", row.Version, err)
	}
	return r.cleanOldVersions(tx, row.ID)
}

// cleanOldVersions deletes everything but the newest maxVersions rows
func (r *ProfileRepository) cleanOldVersions(tx *gorm.DB, profileID string) error {
	var keep []uint
	err := tx.Model(&models.ProfileVersion{}).
		Where("profile_id = ?", profileID).
		Order("version DESC").
		Limit(r.maxVersions).
		Pluck("id", &keep).Error
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}
	if len(keep) == 0 {
		return nil
	}

	err = tx.Where("profile_id = ? AND id NOT IN ?", profileID, keep).
		Delete(&models.ProfileVersion{}).Error
	if err != nil {
		return fmt.Errorf("failed to clean old versions: %w", err)
	}
	return nil
}

// wrap keeps gateway sentinels visible to errors.Is while adding context
func wrap(op, id string, err error) error {
	if errors.Is(err, cloud.ErrNotFound) || errors.Is(err, cloud.ErrVersionNotFound) {
		return err
	}
	return fmt.Errorf("failed to %s profile %s: %w", op, id, err)
}
