//go:build !tinygo

package core

import (
	"runtime"
	"sync/atomic"
)

// State is the saved interrupt state returned by disableInterrupts
type State uintptr

// Hosted Go has no interrupt mask to flip. The simulated interrupt context
// runs on its own goroutine, so the critical section is a spin lock that
// never parks the caller. Not reentrant.
var irqMask atomic.Uint32

// disableInterrupts enters the critical section shared with interrupt context
func disableInterrupts() State {
	for !irqMask.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
	return 1
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	if state != 0 {
		irqMask.Store(0)
	}
}
