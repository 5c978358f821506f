// ABOUTME: Error kinds reported by the follower pipeline
// ABOUTME: Sentinels matched with errors.Is; none of them is fatal
package follower

import "errors"

var (
	// ErrConnectionFailure means the time source could not be reached
	ErrConnectionFailure = errors.New("connection failure")

	// ErrIOFailure means an exchange failed mid-batch (timeout, short read, bad reply)
	ErrIOFailure = errors.New("io failure")

	// ErrNoSamples means a batch was too small to estimate from
	ErrNoSamples = errors.New("no samples")

	// ErrJumpRejected means the clock declined a jump correction
	ErrJumpRejected = errors.New("jump rejected")
)
