// Package version holds build-time version information.
// Populated via -ldflags at release build time.
package version

var (
	// GitRelease is the release tag or commit this binary was built from.
	GitRelease = "dev"

	// BuildDate is the UTC timestamp of the build.
	BuildDate = "unknown"
)
