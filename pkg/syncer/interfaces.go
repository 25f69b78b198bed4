package syncer

import (
	"context"
	"time"

	"github.com/latoulicious/rpsync/pkg/cloud"
)

// ProfileWriter is the part of cloud.Gateway the upload pipeline needs
type ProfileWriter interface {
	CreateProfile(ctx context.Context, data cloud.ProfileData) (*cloud.CloudProfile, error)
	UpdateProfile(ctx context.Context, id string, data cloud.ProfileData) (*cloud.CloudProfile, error)
}

// Config tunes retries and parallelism
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Concurrency int
}

// DefaultConfig returns 3 attempts, a 1s base delay and 3 workers
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Concurrency: 3,
	}
}

// Progress is a snapshot of a running batch. Current is the display name of
// the item the reporting worker just claimed or finished; with several
// workers there is no single global current item
type Progress struct {
	Total     int
	Completed int
	Current   string
	CurrentID string
	Failed    []string
}

// ProgressFunc observes a batch. Calls are serialized
type ProgressFunc func(Progress)

// Result is the outcome of a batch upload. Partial success is normal.
// BatchID tags every log entry the batch wrote
type Result struct {
	BatchID string
	Success []cloud.CloudProfile
	Failed  []string
}
