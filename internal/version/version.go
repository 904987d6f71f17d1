// Package version provides build version information for Capgate.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "dev"
	// Commit is the git commit hash (set by build flags)
	Commit = "unknown"
)

// Full returns a detailed version string with build and platform information.
func Full() string {
	return fmt.Sprintf("%s (%s) %s %s/%s", Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
