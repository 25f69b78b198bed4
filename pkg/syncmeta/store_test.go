package syncmeta

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/latoulicious/rpsync/pkg/conflict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "rpsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	b, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestStore_PutGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 2, 3, 4, 5, 6, 7000, time.UTC)

	require.NoError(t, s.Put(ctx, conflict.Baseline{
		ProfileID:          "p1",
		LastSyncedAt:       at,
		LastSyncedChecksum: "sum-a",
		CloudVersion:       2,
	}))

	b, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "sum-a", b.LastSyncedChecksum)
	assert.Equal(t, 2, b.CloudVersion)
	assert.True(t, at.Equal(b.LastSyncedAt))

	// replace
	require.NoError(t, s.Put(ctx, conflict.Baseline{ProfileID: "p1", LastSyncedChecksum: "sum-b", CloudVersion: 3}))
	b, err = s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "sum-b", b.LastSyncedChecksum)
	assert.Equal(t, 3, b.CloudVersion)
	assert.False(t, b.LastSyncedAt.IsZero())
}

func TestStore_PutRequiresID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Put(context.Background(), conflict.Baseline{}))
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, conflict.Baseline{ProfileID: "p1", LastSyncedChecksum: "x", CloudVersion: 1}))
	require.NoError(t, s.Delete(ctx, "p1"))

	b, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, conflict.Baseline{ProfileID: "p1", LastSyncedChecksum: "x", CloudVersion: 4}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	b, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 4, b.CloudVersion)
}
