// Package version exposes build-time version information for promport.
package version

import "runtime"

var (
	// Version is the semantic version (injected at build time via ldflags).
	Version = "dev"
	// Commit is the git commit hash (injected at build time via ldflags).
	Commit = "none"
	// BuildDate is the build timestamp (injected at build time via ldflags).
	BuildDate = "unknown"
)

// String returns the full version line, including the Go toolchain that built
// the binary.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + BuildDate + ", " + runtime.Version() + ")"
}
