// Package build holds build metadata injected at link time via -ldflags.
package build

import "runtime"

var (
	ReleaseVersion = "dev"
	GitCommit      = "unknown"
	BuildTime      = ""
)

var GoVersion = runtime.Version()
