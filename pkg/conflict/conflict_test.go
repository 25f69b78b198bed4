package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasConflict(t *testing.T) {
	assert.False(t, HasConflict(Side{Checksum: "a"}, Side{Checksum: "a"}))
	assert.True(t, HasConflict(Side{Checksum: "a"}, Side{Checksum: "b"}))
	assert.True(t, HasConflict(Side{Checksum: ""}, Side{Checksum: "b"}))
	assert.False(t, HasConflict(Side{}, Side{}))
}

func TestHasConflict_IgnoresTimestamps(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	assert.False(t, HasConflict(Side{Checksum: "a", ModifiedAt: older}, Side{Checksum: "a", ModifiedAt: newer}))
	assert.True(t, HasConflict(Side{Checksum: "a", ModifiedAt: newer}, Side{Checksum: "b", ModifiedAt: newer}))
}

func TestDetect(t *testing.T) {
	localAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cloudAt := localAt.Add(-time.Hour)

	info, ok := Detect("p1", "Kulyth", Side{Checksum: "aaa", ModifiedAt: localAt}, Side{Checksum: "bbb", ModifiedAt: cloudAt})
	require.True(t, ok)
	assert.Equal(t, Info{
		ProfileID:       "p1",
		ProfileName:     "Kulyth",
		LocalModifiedAt: localAt,
		CloudModifiedAt: cloudAt,
		LocalChecksum:   "aaa",
		CloudChecksum:   "bbb",
	}, info)

	_, ok = Detect("p1", "Kulyth", Side{Checksum: "aaa"}, Side{Checksum: "aaa"})
	assert.False(t, ok)
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("local")
	require.NoError(t, err)
	assert.Equal(t, KeepLocal, r)

	r, err = ParseResolution(" Cloud ")
	require.NoError(t, err)
	assert.Equal(t, KeepCloud, r)

	_, err = ParseResolution("newest")
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	base := &Baseline{ProfileID: "p1", LastSyncedChecksum: "sum", CloudVersion: 3}
	v := func(n int) *int { return &n }

	tests := []struct {
		name     string
		baseline *Baseline
		checksum string
		cloud    *int
		want     Status
	}{
		{"never synced", nil, "sum", v(3), NotSynced},
		{"unchanged", base, "sum", v(3), Synced},
		{"cloud unknown", base, "sum", nil, Synced},
		{"local edit", base, "other", v(3), LocalChanged},
		{"local edit, cloud unknown", base, "other", nil, LocalChanged},
		{"cloud bumped", base, "sum", v(4), CloudChanged},
		{"cloud older is not a change", base, "sum", v(2), Synced},
		{"both", base, "other", v(5), Conflicted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.baseline, tt.checksum, tt.cloud))
		})
	}
}
