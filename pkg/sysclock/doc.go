// ABOUTME: Clock adapters for the follower
// ABOUTME: Kernel-backed system clock and a process-local virtual clock
// Package sysclock provides follower.Clock implementations.
//
// System reads and corrects the host's realtime clock and needs
// CAP_SYS_TIME. Virtual keeps a correction in memory and is safe to use
// without privileges; consumers read the corrected time from it.
//
// Example:
//
//	clock := sysclock.NewVirtual()
//	f, err := follower.New(follower.Config{Clock: clock, ...})
//	now := clock.Time()
package sysclock

import "time"

// UnixSeconds converts t to fractional seconds since the Unix epoch
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromSeconds converts fractional seconds to a Duration
func FromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
