// ABOUTME: Clock capability used by the follower
// ABOUTME: Read, jump and slew operations supplied by an external adapter
package follower

// Units in fractional seconds
const (
	Second      = 1.0
	Millisecond = Second / 1_000
	Microsecond = Millisecond / 1_000
)

// Clock is the set of capabilities the follower needs from a local clock.
//
// Offsets passed to Jump and Slew follow the estimator's sign convention:
// positive means the local clock is ahead of the remote and must move back
// by that amount.
type Clock interface {
	// Now returns the local time in fractional seconds
	Now() float64

	// Jump corrects the clock by offset at once and reports whether it was applied
	Jump(offset float64) bool

	// Slew corrects the clock gradually by offset
	Slew(offset float64)
}

// ClockFuncs adapts three plain callbacks to the Clock interface
type ClockFuncs struct {
	NowFunc  func() float64
	JumpFunc func(offset float64) bool
	SlewFunc func(offset float64)
}

func (c ClockFuncs) Now() float64 { return c.NowFunc() }

func (c ClockFuncs) Jump(offset float64) bool { return c.JumpFunc(offset) }

func (c ClockFuncs) Slew(offset float64) { c.SlewFunc(offset) }
