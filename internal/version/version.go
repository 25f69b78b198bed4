package version

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	// Version is the current version of rpsync
	Version = "0.1.0"

	// GitCommit is the git commit hash (set during build)
	GitCommit = "unknown"

	// BuildTime is when the binary was built (set during build)
	BuildTime = "unknown"
)

// Info contains version information
type Info struct {
	Version     string `json:"version"`
	GitCommit   string `json:"git_commit"`
	ShortCommit string `json:"short_commit"`
	Dirty       bool   `json:"dirty"`
	BuildTime   string `json:"build_time"`
	GoVersion   string `json:"go_version"`
}

// Get returns version information. A GitCommit ending in "-dirty" marks a
// build from a modified workspace
func Get() Info {
	commit := strings.TrimSuffix(GitCommit, "-dirty")
	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	return Info{
		Version:     Version,
		GitCommit:   commit,
		ShortCommit: short,
		Dirty:       commit != GitCommit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
}

// String returns a formatted version string
func (i Info) String() string {
	commit := i.ShortCommit
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("rpsync v%s (commit: %s, built: %s, go: %s)",
		i.Version, commit, i.BuildTime, i.GoVersion)
}
