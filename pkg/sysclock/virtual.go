// ABOUTME: Process-local corrected clock
// ABOUTME: Applies jumps and slews to an in-memory correction instead of the kernel
package sysclock

import (
	"sync"
	"time"
)

// Virtual is a clock whose corrections only affect readers of this value
type Virtual struct {
	mu         sync.RWMutex
	correction float64 // seconds added to the base clock
	base       func() time.Time
}

// NewVirtual creates a virtual clock over the system clock
func NewVirtual() *Virtual {
	return &Virtual{base: time.Now}
}

// Now returns the corrected time in fractional seconds
func (v *Virtual) Now() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return UnixSeconds(v.base()) + v.correction
}

// Time returns the corrected time
func (v *Virtual) Time() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.base().Add(FromSeconds(v.correction))
}

// Jump moves the clock back by offset; it never declines
func (v *Virtual) Jump(offset float64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.correction -= offset
	return true
}

// Slew moves the clock back by offset. Steps are bounded by the caller,
// so the step is applied immediately.
func (v *Virtual) Slew(offset float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.correction -= offset
}

// Correction returns the accumulated correction
func (v *Virtual) Correction() time.Duration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return FromSeconds(v.correction)
}
