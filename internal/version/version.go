// ABOUTME: Version information for the follower
// ABOUTME: Reported by the version command and in the startup log
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.3.0"

const (
	Product      = "clocksync-follower"
	Manufacturer = "Resonate Protocol"
)
