//go:build !linux || !(amd64 || arm64)

// ABOUTME: Fallback for platforms without kernel clock control
// ABOUTME: Every correction fails so the follower keeps retrying
package sysclock

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("clock control not supported on this platform")

func stepClock(time.Duration) error { return errUnsupported }

func slewClock(time.Duration) error { return errUnsupported }
