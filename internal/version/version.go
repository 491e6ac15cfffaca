// Package version holds build-time identifiers reported by the
// diagnostics endpoint (spec §4.7, C7).
package version

// Version is the core's release version, overridden at build time via
// -ldflags "-X github.com/cogserve/cogserve/internal/version.Version=...".
var Version = "dev"

// Commit is the source commit the binary was built from, overridden the
// same way as Version.
var Commit = "unknown"
