//go:build tinygo

package core

import "runtime/interrupt"

// State is the saved interrupt mask returned by disableInterrupts
type State = interrupt.State

// disableInterrupts masks local interrupts so the UNF handler cannot run
// inside the critical section
func disableInterrupts() State {
	return interrupt.Disable()
}

// restoreInterrupts puts back the mask saved by disableInterrupts
func restoreInterrupts(state State) {
	interrupt.Restore(state)
}
