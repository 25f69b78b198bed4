package conflict

import "time"

// Baseline is what both sides looked like at the last successful sync
type Baseline struct {
	ProfileID          string
	LastSyncedAt       time.Time
	LastSyncedChecksum string
	CloudVersion       int
}

// Status is the three-way sync state of a profile
type Status string

const (
	Synced       Status = "synced"
	LocalChanged Status = "local_changed"
	CloudChanged Status = "cloud_changed"
	Conflicted   Status = "conflict"
	NotSynced    Status = "not_synced"
)

// StatusOf compares the current local checksum and cloud version with the
// baseline. A nil baseline means the profile was never synced; a nil
// cloudVersion means the cloud side is unknown and counts as unchanged
func StatusOf(baseline *Baseline, localChecksum string, cloudVersion *int) Status {
	if baseline == nil {
		return NotSynced
	}

	localChanged := localChecksum != baseline.LastSyncedChecksum
	cloudChanged := cloudVersion != nil && *cloudVersion > baseline.CloudVersion

	switch {
	case localChanged && cloudChanged:
		return Conflicted
	case localChanged:
		return LocalChanged
	case cloudChanged:
		return CloudChanged
	}
	return Synced
}
