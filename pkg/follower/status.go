// ABOUTME: Synchronization status owned by the follower goroutine
// ABOUTME: Atomic fields written by one goroutine, read by anyone
package follower

import (
	"math"
	"sync/atomic"
	"time"
)

// StartingJitter is the jitter reported before the first estimate
const StartingJitter = 1_000_000.0

// Status holds the follower's observable state.
//
// Every field is written only by the follower goroutine. Each accessor is an
// atomic read, so single values are always consistent, but Snapshot reads the
// fields one at a time and may mix two cycles. Treat it as an eventually
// consistent view.
type Status struct {
	running       atomic.Bool
	inSync        atomic.Bool
	offsetRemains atomic.Bool
	lastJitter    atomic.Uint64 // float64 bits
	lastOffset    atomic.Uint64 // float64 bits
	lastAction    atomic.Int32
	lastSync      atomic.Int64 // unix nanos of the last estimate

	cycles        atomic.Uint64
	jumps         atomic.Uint64
	rejectedJumps atomic.Uint64
	slews         atomic.Uint64
	failures      atomic.Uint64
}

// Snapshot is a point-in-time copy of Status
type Snapshot struct {
	Running       bool      `json:"running"`
	InSync        bool      `json:"in_sync"`
	OffsetRemains bool      `json:"offset_remains"`
	Offset        float64   `json:"offset"`
	Jitter        float64   `json:"jitter"`
	LastAction    Action    `json:"last_action"`
	LastSync      time.Time `json:"last_sync"`
	Cycles        uint64    `json:"cycles"`
	Jumps         uint64    `json:"jumps"`
	RejectedJumps uint64    `json:"rejected_jumps"`
	Slews         uint64    `json:"slews"`
	Failures      uint64    `json:"failures"`
}

func newStatus() *Status {
	s := &Status{}
	s.offsetRemains.Store(true)
	s.setJitter(StartingJitter)
	return s
}

// Running reports whether the follower loop is still active
func (s *Status) Running() bool { return s.running.Load() }

// InSync reports whether the last cycle left the clock within tolerance
func (s *Status) InSync() bool { return s.inSync.Load() }

// OffsetRemains reports whether a correction is still pending
func (s *Status) OffsetRemains() bool { return s.offsetRemains.Load() }

// Jitter returns the latest observed jitter in seconds
func (s *Status) Jitter() float64 { return math.Float64frombits(s.lastJitter.Load()) }

// Offset returns the latest estimated offset in seconds
func (s *Status) Offset() float64 { return math.Float64frombits(s.lastOffset.Load()) }

// Snapshot copies all fields
func (s *Status) Snapshot() Snapshot {
	snap := Snapshot{
		Running:       s.running.Load(),
		InSync:        s.inSync.Load(),
		OffsetRemains: s.offsetRemains.Load(),
		Offset:        s.Offset(),
		Jitter:        s.Jitter(),
		LastAction:    Action(s.lastAction.Load()),
		Cycles:        s.cycles.Load(),
		Jumps:         s.jumps.Load(),
		RejectedJumps: s.rejectedJumps.Load(),
		Slews:         s.slews.Load(),
		Failures:      s.failures.Load(),
	}
	if ns := s.lastSync.Load(); ns != 0 {
		snap.LastSync = time.Unix(0, ns)
	}
	return snap
}

func (s *Status) setSync(inSync bool) {
	s.inSync.Store(inSync)
	s.offsetRemains.Store(!inSync)
}

func (s *Status) setJitter(v float64) { s.lastJitter.Store(math.Float64bits(v)) }

func (s *Status) setEstimate(est Estimate, at time.Time) {
	s.lastOffset.Store(math.Float64bits(est.Offset))
	s.setJitter(est.Jitter)
	s.lastSync.Store(at.UnixNano())
}

func (s *Status) recordAction(a Action) {
	s.lastAction.Store(int32(a))
	switch a {
	case ActionJump:
		s.jumps.Add(1)
	case ActionJumpRejected:
		s.rejectedJumps.Add(1)
	case ActionSlew:
		s.slews.Add(1)
	}
}
