package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/latoulicious/rpsync/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errTransient = errors.New("connection reset by peer")

// fakeWriter lets each test script update and create separately
type fakeWriter struct {
	mu      sync.Mutex
	updates int
	creates int
	update  func(n int, data cloud.ProfileData) (*cloud.CloudProfile, error)
	create  func(n int, data cloud.ProfileData) (*cloud.CloudProfile, error)
}

func (f *fakeWriter) UpdateProfile(ctx context.Context, id string, data cloud.ProfileData) (*cloud.CloudProfile, error) {
	f.mu.Lock()
	f.updates++
	n := f.updates
	f.mu.Unlock()
	if f.update == nil {
		return nil, cloud.ErrNotFound
	}
	return f.update(n, data)
}

func (f *fakeWriter) CreateProfile(ctx context.Context, data cloud.ProfileData) (*cloud.CloudProfile, error) {
	f.mu.Lock()
	f.creates++
	n := f.creates
	f.mu.Unlock()
	if f.create == nil {
		return stored(data), nil
	}
	return f.create(n, data)
}

func stored(data cloud.ProfileData) *cloud.CloudProfile {
	return &cloud.CloudProfile{ID: data.ID, ProfileName: data.ProfileName, Checksum: data.Checksum, Version: 1}
}

func newTestService(t *testing.T, w ProfileWriter, cfg Config) (*Service, *[]time.Duration) {
	t.Helper()
	svc := NewService(w, cfg, logging.NewZapLoggerFrom(zaptest.NewLogger(t), "sync"))

	var mu sync.Mutex
	delays := []time.Duration{}
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}
	return svc, &delays
}

func item(n int) cloud.ProfileData {
	return cloud.ProfileData{
		ID:          fmt.Sprintf("profile-%d", n),
		AccountID:   "ACCOUNT-1",
		ProfileName: fmt.Sprintf("Character %d", n),
		Checksum:    fmt.Sprintf("sum-%d", n),
	}
}

func TestUploadProfile_UpdateSucceeds(t *testing.T) {
	w := &fakeWriter{update: func(_ int, data cloud.ProfileData) (*cloud.CloudProfile, error) {
		p := stored(data)
		p.Version = 4
		return p, nil
	}}
	svc, delays := newTestService(t, w, DefaultConfig())

	got, err := svc.UploadProfile(context.Background(), item(1))
	require.NoError(t, err)
	assert.Equal(t, 4, got.Version)
	assert.Equal(t, 0, w.creates)
	assert.Empty(t, *delays)
}

func TestUploadProfile_FallsBackToCreate(t *testing.T) {
	w := &fakeWriter{}
	svc, _ := newTestService(t, w, DefaultConfig())

	got, err := svc.UploadProfile(context.Background(), item(1))
	require.NoError(t, err)
	assert.Equal(t, "profile-1", got.ID)
	assert.Equal(t, 1, w.updates)
	assert.Equal(t, 1, w.creates)
}

func TestUploadProfile_SucceedsOnThirdAttempt(t *testing.T) {
	w := &fakeWriter{create: func(n int, data cloud.ProfileData) (*cloud.CloudProfile, error) {
		if n < 3 {
			return nil, errTransient
		}
		return stored(data), nil
	}}
	svc, delays := newTestService(t, w, DefaultConfig())

	got, err := svc.UploadProfile(context.Background(), item(7))
	require.NoError(t, err)
	assert.Equal(t, "profile-7", got.ID)
	assert.Equal(t, 3, w.updates)
	assert.Equal(t, 3, w.creates)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestUploadProfile_RetriesExhausted(t *testing.T) {
	w := &fakeWriter{create: func(int, cloud.ProfileData) (*cloud.CloudProfile, error) {
		return nil, errTransient
	}}
	cfg := Config{MaxAttempts: 4, BaseDelay: 50 * time.Millisecond, Concurrency: 1}
	svc, delays := newTestService(t, w, cfg)

	_, err := svc.UploadProfile(context.Background(), item(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "max retries exceeded after 4 attempts")
	assert.Equal(t, 4, w.creates)

	require.Len(t, *delays, 3)
	for i := 1; i < len(*delays); i++ {
		assert.Greater(t, (*delays)[i], (*delays)[i-1], "backoff must increase")
	}
	assert.Equal(t, 150*time.Millisecond, (*delays)[2])
}

func TestUploadProfile_ClientErrorsAreRetriedToExhaustion(t *testing.T) {
	for _, status := range []int{400, 401, 403} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			rejected := &cloud.APIError{StatusCode: status, Message: "rejected"}
			w := &fakeWriter{
				update: func(int, cloud.ProfileData) (*cloud.CloudProfile, error) { return nil, rejected },
				create: func(int, cloud.ProfileData) (*cloud.CloudProfile, error) { return nil, rejected },
			}
			cfg := DefaultConfig()
			svc, delays := newTestService(t, w, cfg)

			_, err := svc.UploadProfile(context.Background(), item(1))
			require.Error(t, err)
			assert.ErrorIs(t, err, rejected)
			assert.Contains(t, err.Error(), "max retries exceeded after 3 attempts")
			assert.Equal(t, cfg.MaxAttempts, w.updates)
			assert.Equal(t, cfg.MaxAttempts, w.creates)
			assert.Equal(t, []time.Duration{cfg.BaseDelay, 2 * cfg.BaseDelay}, *delays)
		})
	}
}

func TestUploadProfile_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &fakeWriter{create: func(int, cloud.ProfileData) (*cloud.CloudProfile, error) {
		cancel()
		return nil, errTransient
	}}
	svc, delays := newTestService(t, w, DefaultConfig())

	_, err := svc.UploadProfile(ctx, item(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, w.creates)
	assert.Empty(t, *delays)
}

func TestUploadProfiles_PartialFailure(t *testing.T) {
	w := &fakeWriter{create: func(_ int, data cloud.ProfileData) (*cloud.CloudProfile, error) {
		if data.ID == "profile-3" {
			return nil, errTransient
		}
		return stored(data), nil
	}}
	svc, _ := newTestService(t, w, DefaultConfig())

	items := []cloud.ProfileData{item(1), item(2), item(3), item(4), item(5)}

	var snapshots []Progress
	res := svc.UploadProfiles(context.Background(), items, func(p Progress) {
		snapshots = append(snapshots, p)
	})

	assert.Len(t, res.Success, 4)
	assert.Equal(t, []string{"profile-3"}, res.Failed)
	assert.NotEmpty(t, res.BatchID)

	require.Len(t, snapshots, 10, "one snapshot on claim and one on completion per item")
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, 5, last.Total)
	assert.Equal(t, 5, last.Completed)
	assert.Equal(t, []string{"profile-3"}, last.Failed)

	for _, p := range snapshots {
		assert.NotEmpty(t, p.Current)
		assert.NotEmpty(t, p.CurrentID)
	}
}

func TestUploadProfiles_ConcurrencyBound(t *testing.T) {
	const limit = 3

	// the first three uploads wait for each other so the pool is saturated
	var (
		mu       sync.Mutex
		arrived  int
		inWriter int
		maxInW   int
		release  = make(chan struct{})
	)
	w := &fakeWriter{update: func(_ int, data cloud.ProfileData) (*cloud.CloudProfile, error) {
		mu.Lock()
		arrived++
		inWriter++
		if inWriter > maxInW {
			maxInW = inWriter
		}
		if arrived == limit {
			close(release)
		}
		mu.Unlock()

		<-release
		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inWriter--
		mu.Unlock()
		return stored(data), nil
	}}
	svc, _ := newTestService(t, w, Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Concurrency: limit})

	items := make([]cloud.ProfileData, 10)
	for i := range items {
		items[i] = item(i + 1)
	}

	calls, maxInFlight := 0, 0
	res := svc.UploadProfiles(context.Background(), items, func(p Progress) {
		calls++
		// every call is a claim or a completion, so claims = calls - completed
		inFlight := (calls - p.Completed) - p.Completed
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
	})

	assert.Len(t, res.Success, 10)
	assert.Empty(t, res.Failed)
	assert.NotNil(t, res.Failed)
	assert.Equal(t, 20, calls)
	assert.Equal(t, limit, maxInFlight)
	assert.LessOrEqual(t, maxInW, limit)
}

func TestUploadProfiles_FewerItemsThanWorkers(t *testing.T) {
	w := &fakeWriter{}
	svc, _ := newTestService(t, w, Config{Concurrency: 8})

	res := svc.UploadProfiles(context.Background(), []cloud.ProfileData{item(1), item(2)}, nil)
	assert.Len(t, res.Success, 2)
	assert.Equal(t, 2, w.creates)
}

func TestUploadProfiles_Empty(t *testing.T) {
	svc, _ := newTestService(t, &fakeWriter{}, DefaultConfig())

	called := false
	res := svc.UploadProfiles(context.Background(), nil, func(Progress) { called = true })

	assert.False(t, called)
	assert.NotNil(t, res.Success)
	assert.NotNil(t, res.Failed)
	assert.Empty(t, res.Failed)
}

func TestUploadProfiles_CanceledBatchFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &fakeWriter{
		update: func(int, cloud.ProfileData) (*cloud.CloudProfile, error) { return nil, context.Canceled },
		create: func(int, cloud.ProfileData) (*cloud.CloudProfile, error) { return nil, context.Canceled },
	}
	svc, delays := newTestService(t, w, DefaultConfig())

	res := svc.UploadProfiles(ctx, []cloud.ProfileData{item(1), item(2), item(3), item(4)}, nil)
	assert.Empty(t, res.Success)
	assert.ElementsMatch(t, []string{"profile-1", "profile-2", "profile-3", "profile-4"}, res.Failed)
	assert.Empty(t, *delays)
}

func TestUploadProfiles_AgainstMemoryGateway(t *testing.T) {
	store := cloud.NewMemoryGateway("user-1", 0)
	svc := NewService(store, Config{BaseDelay: time.Millisecond}, logging.NewNopLogger())
	ctx := context.Background()

	first := svc.UploadProfiles(ctx, []cloud.ProfileData{item(1), item(2)}, nil)
	require.Empty(t, first.Failed)

	changed := item(1)
	changed.Checksum = "sum-1b"
	got, err := svc.UploadProfile(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "sum-1b", got.Checksum)

	versions, err := store.GetVersions(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "sum-1", versions[0].Checksum)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
