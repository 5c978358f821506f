// ABOUTME: Correction decision and application
// ABOUTME: Chooses between no correction, a jump, or one bounded slew step
package follower

import (
	"math"

	"go.uber.org/zap"
)

// Correction thresholds in seconds
const (
	Tolerance         = 0.1 * Millisecond
	MinJump           = 10 * Millisecond
	MaxSlew           = 500 * Microsecond
	ResidualTolerance = 1 * Microsecond
)

// Action is the correction chosen for one estimate
type Action int32

const (
	ActionNone Action = iota
	ActionJump
	ActionJumpRejected
	ActionSlew
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionJump:
		return "jump"
	case ActionJumpRejected:
		return "jump-rejected"
	case ActionSlew:
		return "slew"
	}
	return "unknown"
}

// MarshalText encodes the action by name
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Correction describes what the controller did with one estimate
type Correction struct {
	Action Action

	// Applied is the amount handed to the clock
	Applied float64

	// Residual is the part of the offset left uncorrected
	Residual float64

	// Retry asks the scheduler for a short retry instead of a full interval
	Retry bool

	// Pending asks the scheduler for a short pause before the interval
	Pending bool
}

// Controller applies corrections through a Clock and updates Status
type Controller struct {
	clock  Clock
	status *Status
	logger *zap.Logger
}

// NewController creates a controller
func NewController(clock Clock, status *Status, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{clock: clock, status: status, logger: logger}
}

// Apply decides and applies the correction for est
func (c *Controller) Apply(est Estimate) Correction {
	c.status.setJitter(est.Jitter)

	var corr Correction
	abs := math.Abs(est.Offset)

	switch {
	case abs <= math.Max(est.Jitter, Tolerance):
		c.logger.Debug("No clock adjustment")
		c.status.setSync(true)
		corr = Correction{Action: ActionNone, Residual: est.Offset}

	case abs > MinJump:
		if c.clock.Jump(est.Offset) {
			c.logger.Debug("Time adjusted", zap.Float64("ms", est.Offset/Millisecond))
			c.status.setSync(true)
			corr = Correction{Action: ActionJump, Applied: est.Offset}
		} else {
			c.logger.Warn("Clock jump rejected",
				zap.Float64("ms", est.Offset/Millisecond), zap.Error(ErrJumpRejected))
			c.status.setSync(false)
			corr = Correction{Action: ActionJumpRejected, Residual: est.Offset, Retry: true}
		}

	default:
		// one bounded step per cycle; later cycles pick up the remainder
		step := max(-MaxSlew, min(MaxSlew, est.Offset))
		c.clock.Slew(step)
		c.logger.Debug("Time slewed", zap.Float64("ms", step/Millisecond))

		residual := est.Offset - step
		inSync := math.Abs(residual) < ResidualTolerance
		c.status.setSync(inSync)
		corr = Correction{Action: ActionSlew, Applied: step, Residual: residual, Pending: !inSync}
	}

	c.status.recordAction(corr.Action)
	return corr
}
