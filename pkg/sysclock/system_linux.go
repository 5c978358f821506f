//go:build linux && (amd64 || arm64)

// ABOUTME: Linux implementation of clock stepping and slewing
// ABOUTME: Uses clock_settime and adjtimex single-shot offsets
package sysclock

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// stepClock adds delta to CLOCK_REALTIME
func stepClock(delta time.Duration) error {
	ts := unix.NsecToTimespec(time.Now().Add(delta).UnixNano())
	if err := unix.ClockSettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return fmt.Errorf("clock_settime: %w", err)
	}
	return nil
}

// slewClock hands delta to the kernel as a single-shot adjustment
func slewClock(delta time.Duration) error {
	us := delta.Microseconds()
	if us == 0 {
		return nil
	}

	buf := &unix.Timex{
		Modes:  unix.ADJ_OFFSET_SINGLESHOT,
		Offset: us,
	}
	if _, err := unix.Adjtimex(buf); err != nil {
		return fmt.Errorf("adjtimex: %w", err)
	}
	return nil
}
