package cloud

import (
	"errors"
	"strings"
	"time"
)

// ProfileData is the payload sent when creating or updating a cloud profile.
// RawLua carries the serialized addon record and Checksum its fingerprint
type ProfileData struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	ProfileName string `json:"profile_name"`
	RawLua      string `json:"raw_lua"`
	Checksum    string `json:"checksum"`
}

// Validate checks the fields every store requires
func (d ProfileData) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.Join(ErrInvalidProfile, errors.New("id is required"))
	}
	return nil
}

// CloudProfile is a profile as stored remotely
type CloudProfile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AccountID   string    `json:"account_id"`
	ProfileName string    `json:"profile_name"`
	Checksum    string    `json:"checksum"`
	RawLua      string    `json:"raw_lua,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileVersion is a historical snapshot of a cloud profile
type ProfileVersion struct {
	ID        uint      `json:"id"`
	ProfileID string    `json:"profile_id"`
	Version   int       `json:"version"`
	RawLua    string    `json:"raw_lua,omitempty"`
	Checksum  string    `json:"checksum"`
	ChangeLog string    `json:"change_log"`
	CreatedAt time.Time `json:"created_at"`
}

type listResponse struct {
	Profiles []CloudProfile `json:"profiles"`
}

type versionsResponse struct {
	Versions []ProfileVersion `json:"versions"`
}

type rollbackRequest struct {
	Version int `json:"version"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
