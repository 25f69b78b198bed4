package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/latoulicious/rpsync/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// Service pushes local profiles to a remote store
type Service struct {
	writer ProfileWriter
	cfg    Config
	logger logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewService creates an upload service. Non-positive config values fall back
// to DefaultConfig
func NewService(w ProfileWriter, cfg Config, logger logging.Logger) *Service {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}

	return &Service{
		writer: w,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// UploadProfile updates the remote copy of data, creating it when the update
// fails. Every failure is retried up to MaxAttempts times with a linear
// backoff; the final error wraps the last attempt's error. Only a canceled
// context ends the envelope early
func (s *Service) UploadProfile(ctx context.Context, data cloud.ProfileData) (*cloud.CloudProfile, error) {
	return s.upload(ctx, data, s.logger.WithContext(map[string]interface{}{
		"profile_id": data.ID,
	}))
}

func (s *Service) upload(ctx context.Context, data cloud.ProfileData, logger logging.Logger) (*cloud.CloudProfile, error) {
	var lastErr error

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * s.cfg.BaseDelay
			logger.Warn("Retrying profile upload", map[string]interface{}{
				"attempt":      attempt + 1,
				"max_attempts": s.cfg.MaxAttempts,
				"delay":        delay.String(),
				"last_error":   lastErr.Error(),
			})
			if err := s.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("upload of profile %s interrupted: %w", data.ID, err)
			}
		}

		profile, err := s.updateOrCreate(ctx, data, logger)
		if err == nil {
			return profile, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("upload of profile %s interrupted: %w", data.ID, errors.Join(ctxErr, err))
		}
	}

	return nil, fmt.Errorf("max retries exceeded after %d attempts, last error: %w", s.cfg.MaxAttempts, lastErr)
}

// updateOrCreate is one attempt. Any update failure, not only not-found,
// falls through to create
func (s *Service) updateOrCreate(ctx context.Context, data cloud.ProfileData, logger logging.Logger) (*cloud.CloudProfile, error) {
	profile, err := s.writer.UpdateProfile(ctx, data.ID, data)
	if err == nil {
		return profile, nil
	}

	logger.Debug("Update failed, falling back to create", map[string]interface{}{
		"error": err.Error(),
	})

	profile, createErr := s.writer.CreateProfile(ctx, data)
	if createErr != nil {
		return nil, fmt.Errorf("create profile %s after failed update (%v): %w", data.ID, err, createErr)
	}
	return profile, nil
}

// UploadProfiles uploads items with at most Concurrency uploads in flight.
// One item's failure never stops the others; failed ids are collected in
// the result. onProgress may be nil
func (s *Service) UploadProfiles(ctx context.Context, items []cloud.ProfileData, onProgress ProgressFunc) Result {
	logger := logging.NewSyncLogger(s.logger, uuid.NewString())
	b := newBatch(logger.BatchID(), len(items), onProgress)
	if len(items) == 0 {
		return b.result()
	}

	start := time.Now()

	queue := make(chan cloud.ProfileData, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	workers := min(s.cfg.Concurrency, len(items))
	logger.Info("Starting batch upload", map[string]interface{}{
		"total":   len(items),
		"workers": workers,
	})

	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for item := range queue {
				b.claim(item)

				itemLogger := logger.WithProfile(item.ID, item.ProfileName)
				profile, err := s.upload(ctx, item, itemLogger)
				if err != nil {
					itemLogger.Error("Profile upload failed", err, nil)
				}

				b.finish(item, profile, err)
			}
			return nil
		})
	}
	// failures are recorded per item, so no worker returns an error
	_ = g.Wait()

	res := b.result()
	logger.Info("Batch upload completed", map[string]interface{}{
		"total":         len(items),
		"batch_id":      res.BatchID,
		"success_count": len(res.Success),
		"failed_count":  len(res.Failed),
		"duration":      time.Since(start).String(),
	})
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
