package models

import (
	"time"

	"github.com/latoulicious/rpsync/pkg/cloud"
)

// Profile is the current cloud copy of one character profile
type Profile struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	UserID      string    `gorm:"size:64;index;not null" json:"user_id"`
	AccountID   string    `gorm:"size:64;index" json:"account_id"`
	ProfileName string    `gorm:"size:128" json:"profile_name"`
	RawLua      string    `gorm:"type:text" json:"raw_lua,omitempty"`
	Checksum    string    `gorm:"size:32" json:"checksum"`
	Version     int       `gorm:"default:1;not null" json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Versions []ProfileVersion `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"-"`
}

// ProfileVersion is a snapshot taken before a profile was overwritten
type ProfileVersion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProfileID string    `gorm:"size:64;index:idx_profile_versions_profile_version;not null" json:"profile_id"`
	Version   int       `gorm:"index:idx_profile_versions_profile_version;not null" json:"version"`
	RawLua    string    `gorm:"type:text" json:"raw_lua,omitempty"`
	Checksum  string    `gorm:"size:32" json:"checksum"`
	ChangeLog string    `gorm:"type:text" json:"change_log"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// TableName returns the table name for ProfileVersion
func (ProfileVersion) TableName() string {
	return "profile_versions"
}

// ToCloud converts the row to the gateway type
func (p Profile) ToCloud() cloud.CloudProfile {
	return cloud.CloudProfile{
		ID:          p.ID,
		UserID:      p.UserID,
		AccountID:   p.AccountID,
		ProfileName: p.ProfileName,
		Checksum:    p.Checksum,
		RawLua:      p.RawLua,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ToCloud converts the row to the gateway type
func (v ProfileVersion) ToCloud() cloud.ProfileVersion {
	return cloud.ProfileVersion{
		ID:        v.ID,
		ProfileID: v.ProfileID,
		Version:   v.Version,
		RawLua:    v.RawLua,
		Checksum:  v.Checksum,
		ChangeLog: v.ChangeLog,
		CreatedAt: v.CreatedAt,
	}
}
