// Package conflict decides whether a local and a cloud copy of a profile have
// diverged. Checksums are opaque; only equality matters. Timestamps are
// carried for display and never used to pick a winner
package conflict

import (
	"fmt"
	"strings"
	"time"
)

// Side is one copy of a profile
type Side struct {
	Checksum   string
	ModifiedAt time.Time
}

// Info describes a detected conflict for presentation
type Info struct {
	ProfileID       string    `json:"profileId"`
	ProfileName     string    `json:"profileName"`
	LocalModifiedAt time.Time `json:"localModifiedAt"`
	CloudModifiedAt time.Time `json:"cloudModifiedAt"`
	LocalChecksum   string    `json:"localChecksum"`
	CloudChecksum   string    `json:"cloudChecksum"`
}

// HasConflict reports whether the two copies differ. An empty checksum
// against a non-empty one is a conflict
func HasConflict(local, cloud Side) bool {
	return local.Checksum != cloud.Checksum
}

// Detect returns the conflict record when local and cloud differ
func Detect(profileID, profileName string, local, cloud Side) (Info, bool) {
	if !HasConflict(local, cloud) {
		return Info{}, false
	}
	return Info{
		ProfileID:       profileID,
		ProfileName:     profileName,
		LocalModifiedAt: local.ModifiedAt,
		CloudModifiedAt: cloud.ModifiedAt,
		LocalChecksum:   local.Checksum,
		CloudChecksum:   cloud.Checksum,
	}, true
}

// Resolution is the user's manual choice for a conflict
type Resolution string

const (
	KeepLocal Resolution = "local"
	KeepCloud Resolution = "cloud"
)

// ParseResolution accepts "local" or "cloud", case-insensitively
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(s))); r {
	case KeepLocal, KeepCloud:
		return r, nil
	}
	return "", fmt.Errorf("invalid conflict resolution %q (must be local or cloud)", s)
}
