package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_DirtyCommit(t *testing.T) {
	old := GitCommit
	t.Cleanup(func() { GitCommit = old })

	GitCommit = "0123456789abcdef-dirty"
	info := Get()
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, "0123456", info.ShortCommit)
	assert.True(t, info.Dirty)
	assert.Contains(t, info.String(), "commit: 0123456-dirty")

	GitCommit = "abc"
	info = Get()
	assert.Equal(t, "abc", info.ShortCommit)
	assert.False(t, info.Dirty)
	assert.Contains(t, info.String(), "rpsync v"+Version)
}
