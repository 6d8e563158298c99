// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/endorses/voipfilter/internal/pkg/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version
	Version = "dev"

	// GitCommit is the git commit hash
	GitCommit = "unknown"

	// BuildDate is the build date
	BuildDate = "unknown"
)

// GetVersion returns the bare version
func GetVersion() string {
	return Version
}

// GetFullVersion adds commit, build date and toolchain.
func GetFullVersion() string {
	commit := GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (commit: %s, built: %s, %s %s/%s)",
		Version, commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
