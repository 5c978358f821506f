// ABOUTME: Tests for the correction controller
// ABOUTME: Verifies the none, jump and slew branches and status updates
package follower

import (
	"math"
	"testing"
)

func newTestController() (*Controller, *fakeClock, *Status) {
	clock := newFakeClock()
	status := newStatus()
	return NewController(clock, status, nil), clock, status
}

func TestControllerWithinTolerance(t *testing.T) {
	tests := []struct {
		name string
		est  Estimate
	}{
		{"zero offset", Estimate{Offset: 0, Jitter: 0}},
		{"below tolerance", Estimate{Offset: 0.05 * Millisecond, Jitter: 0}},
		{"exactly tolerance", Estimate{Offset: -Tolerance, Jitter: 0}},
		{"inside jitter", Estimate{Offset: 5 * Millisecond, Jitter: 6 * Millisecond}},
		{"large but inside jitter", Estimate{Offset: -40 * Millisecond, Jitter: 50 * Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock, status := newTestController()

			corr := c.Apply(tt.est)

			if corr.Action != ActionNone {
				t.Errorf("expected ActionNone, got %v", corr.Action)
			}
			if !status.InSync() {
				t.Error("expected inSync true")
			}
			if status.OffsetRemains() {
				t.Error("expected offsetRemains false")
			}
			if clock.jumpCount() != 0 || clock.slewCount() != 0 {
				t.Errorf("expected no clock mutation, got %d jumps %d slews",
					clock.jumpCount(), clock.slewCount())
			}
			if status.Jitter() != tt.est.Jitter {
				t.Errorf("expected jitter %v recorded, got %v", tt.est.Jitter, status.Jitter())
			}
		})
	}
}

func TestControllerJumpSuccess(t *testing.T) {
	c, clock, status := newTestController()

	corr := c.Apply(Estimate{Offset: 50 * Millisecond, Jitter: 0.001 * Millisecond})

	if corr.Action != ActionJump {
		t.Fatalf("expected ActionJump, got %v", corr.Action)
	}
	if clock.jumpCount() != 1 {
		t.Fatalf("expected 1 jump, got %d", clock.jumpCount())
	}
	if clock.lastJump() != 50*Millisecond {
		t.Errorf("expected jump of 50ms, got %v", clock.lastJump())
	}
	if !status.InSync() || status.OffsetRemains() {
		t.Error("expected inSync after successful jump")
	}
	if corr.Retry {
		t.Error("successful jump should not request retry")
	}
	if clock.slewCount() != 0 {
		t.Error("jump path must not slew")
	}
}

func TestControllerJumpRejected(t *testing.T) {
	c, clock, status := newTestController()
	clock.setJumpResult(false)

	corr := c.Apply(Estimate{Offset: -50 * Millisecond})

	if corr.Action != ActionJumpRejected {
		t.Fatalf("expected ActionJumpRejected, got %v", corr.Action)
	}
	if !corr.Retry {
		t.Error("expected Retry after rejected jump")
	}
	if status.InSync() {
		t.Error("expected inSync false after rejected jump")
	}
	if !status.OffsetRemains() {
		t.Error("expected offsetRemains true after rejected jump")
	}
	if clock.lastJump() != -50*Millisecond {
		t.Errorf("expected jump attempt of -50ms, got %v", clock.lastJump())
	}

	snap := status.Snapshot()
	if snap.RejectedJumps != 1 || snap.Jumps != 0 {
		t.Errorf("expected 1 rejected jump and 0 jumps, got %d and %d", snap.RejectedJumps, snap.Jumps)
	}
}

func TestControllerSlewClamped(t *testing.T) {
	tests := []struct {
		name     string
		offset   float64
		step     float64
		residual float64
	}{
		{"positive", 3 * Millisecond, MaxSlew, 2.5 * Millisecond},
		{"negative", -3 * Millisecond, -MaxSlew, -2.5 * Millisecond},
		{"just under jump", MinJump, MaxSlew, MinJump - MaxSlew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock, status := newTestController()

			corr := c.Apply(Estimate{Offset: tt.offset})

			if corr.Action != ActionSlew {
				t.Fatalf("expected ActionSlew, got %v", corr.Action)
			}
			if clock.slewCount() != 1 {
				t.Fatalf("expected exactly one slew step, got %d", clock.slewCount())
			}
			if clock.lastSlew() != tt.step {
				t.Errorf("expected slew %v, got %v", tt.step, clock.lastSlew())
			}
			if math.Abs(corr.Residual-tt.residual) > 1e-12 {
				t.Errorf("expected residual %v, got %v", tt.residual, corr.Residual)
			}
			if status.InSync() {
				t.Error("expected inSync false with residual left")
			}
			if !status.OffsetRemains() || !corr.Pending {
				t.Error("expected pending correction")
			}
			if clock.jumpCount() != 0 {
				t.Error("slew path must not jump")
			}
		})
	}
}

func TestControllerSlewCompletes(t *testing.T) {
	c, clock, status := newTestController()

	corr := c.Apply(Estimate{Offset: 0.3 * Millisecond})

	if corr.Action != ActionSlew {
		t.Fatalf("expected ActionSlew, got %v", corr.Action)
	}
	if clock.lastSlew() != 0.3*Millisecond {
		t.Errorf("expected full offset slewed, got %v", clock.lastSlew())
	}
	if !status.InSync() || status.OffsetRemains() || corr.Pending {
		t.Error("expected inSync with nothing pending")
	}
}

func TestActionString(t *testing.T) {
	tests := []struct {
		action   Action
		expected string
	}{
		{ActionNone, "none"},
		{ActionJump, "jump"},
		{ActionJumpRejected, "jump-rejected"},
		{ActionSlew, "slew"},
		{Action(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.action.String(); got != tt.expected {
			t.Errorf("Action(%d).String() = %q, expected %q", tt.action, got, tt.expected)
		}
	}
}
