// Package version holds build information injected with -ldflags, for
// example:
//
//	go build -ldflags "-X github.com/star/missiontle/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info returns a one-line version string.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s", Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
