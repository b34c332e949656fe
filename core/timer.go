// TMU channel 1 configuration
// The period is fixed: Pφ/4 = 8MHz counter clock, 8,000,000 counts = 1s
package core

// Timer clock for the SH7706 board
const (
	PeripheralClock  = 32000000            // Pφ 32MHz
	TimerClock       = PeripheralClock / 4 // 8MHz, 0.125us per count
	TimerPeriodTicks = 8000000             // 1 second
	TimerDivisor     = TCR_TPSC_4
)

// TimerFromUS converts microseconds to counter ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerClock / 1000000)
}

// TimerToUS converts counter ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerClock)
}

// TimerUnit programs and stops TMU channel 1
type TimerUnit struct {
	regs RegisterBlock
}

// NewTimerUnit binds the timer to a register block
func NewTimerUnit(regs RegisterBlock) *TimerUnit {
	return &TimerUnit{regs: regs}
}

// Program sets up a 1s periodic underflow interrupt and starts the counter.
// TCNT is preloaded with the period so the first underflow comes a full
// period after start.
func (t *TimerUnit) Program() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t.regs.Write16(RegTCR1, TCR_UNIE|TimerDivisor)
	t.regs.Write32(RegTCOR1, TimerPeriodTicks)
	t.regs.Write32(RegTCNT1, TimerPeriodTicks)

	// TSTR is shared with channels 0 and 2
	setBits8(t.regs, RegTSTR, TSTR_STR1)
}

// Stop disables the underflow interrupt and stops the counter
func (t *TimerUnit) Stop() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	clearBits16(t.regs, RegTCR1, TCR_UNIE)
	clearBits8(t.regs, RegTSTR, TSTR_STR1)
}

// Running reports whether the channel is counting with its interrupt enabled
func (t *TimerUnit) Running() bool {
	return t.regs.Read8(RegTSTR)&TSTR_STR1 != 0 && t.regs.Read16(RegTCR1)&TCR_UNIE != 0
}

// Count returns the current counter value
func (t *TimerUnit) Count() uint32 {
	return t.regs.Read32(RegTCNT1)
}
