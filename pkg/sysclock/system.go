// ABOUTME: Kernel realtime clock adapter
// ABOUTME: Jumps via clock_settime and slews via adjtimex, with a jump policy
package sysclock

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// System corrects the host realtime clock
type System struct {
	maxJump float64
	logger  *zap.Logger
}

// NewSystem creates a system clock adapter. Jumps larger than maxJump are
// declined; zero allows any jump.
func NewSystem(maxJump time.Duration, logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{
		maxJump: maxJump.Seconds(),
		logger:  logger.Named("sysclock"),
	}
}

// Now returns the realtime clock in fractional seconds
func (s *System) Now() float64 {
	return UnixSeconds(time.Now())
}

// Jump steps the clock back by offset
func (s *System) Jump(offset float64) bool {
	if s.maxJump > 0 && math.Abs(offset) > s.maxJump {
		s.logger.Warn("Jump exceeds policy limit",
			zap.Duration("offset", FromSeconds(offset)),
			zap.Duration("max_jump", FromSeconds(s.maxJump)))
		return false
	}

	if err := stepClock(FromSeconds(-offset)); err != nil {
		s.logger.Error("Failed to step clock", zap.Error(err))
		return false
	}
	return true
}

// Slew asks the kernel to absorb offset gradually
func (s *System) Slew(offset float64) {
	if err := slewClock(FromSeconds(-offset)); err != nil {
		s.logger.Error("Failed to slew clock", zap.Error(err))
	}
}
