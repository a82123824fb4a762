// Package version provides build and version information for varannot.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of varannot.
// Set via ldflags at build time, or defaults to dev.
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// Info returns the full version string including commit and build date.
func Info() string {
	return fmt.Sprintf("varannot %s (commit %s, built %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
