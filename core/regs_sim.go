package core

import (
	"sync"
	"sync/atomic"
)

// SimBlock is an in-memory RegisterBlock that also models TMU channel 1.
// TCR.UNF behaves like the hardware flag: writing 0 clears it, writing 1
// leaves it unchanged.
type SimBlock struct {
	regs [numRegisters]atomic.Uint32

	// counter serializes Advance
	counter sync.Mutex
	line    atomic.Pointer[IRQLine]
}

// NewSimBlock returns a block with every register reset to zero
func NewSimBlock() *SimBlock {
	return &SimBlock{}
}

// AttachIRQ connects the simulated TMU interrupt output to an interrupt line
func (s *SimBlock) AttachIRQ(line *IRQLine) {
	s.line.Store(line)
}

func (s *SimBlock) Read8(r Register) uint8 {
	return uint8(s.regs[r].Load())
}

func (s *SimBlock) Write8(r Register, v uint8) {
	s.regs[r].Store(uint32(v))
}

func (s *SimBlock) Read16(r Register) uint16 {
	return uint16(s.regs[r].Load())
}

func (s *SimBlock) Write16(r Register, v uint16) {
	if r != RegTCR1 {
		s.regs[r].Store(uint32(v))
		return
	}
	for {
		old := s.regs[r].Load()
		next := uint32(v&^TCR_UNF) | (old & uint32(v) & TCR_UNF)
		if s.regs[r].CompareAndSwap(old, next) {
			return
		}
	}
}

func (s *SimBlock) Read32(r Register) uint32 {
	return s.regs[r].Load()
}

func (s *SimBlock) Write32(r Register, v uint32) {
	s.regs[r].Store(v)
}

// Advance runs channel 1 for the given number of counter clocks and returns
// how many underflows occurred. Nothing happens while TSTR.STR1 is clear.
// Each underflow reloads TCNT from TCOR, sets TCR.UNF and, when TCR.UNIE is
// set, raises the attached interrupt line.
func (s *SimBlock) Advance(ticks uint32) int {
	s.counter.Lock()
	if s.Read8(RegTSTR)&TSTR_STR1 == 0 {
		s.counter.Unlock()
		return 0
	}

	underflows := 0
	cnt := s.regs[RegTCNT1].Load()
	for ticks > 0 {
		if ticks <= cnt {
			cnt -= ticks
			break
		}
		// Counts down through zero, then reloads
		ticks -= cnt + 1
		cnt = s.regs[RegTCOR1].Load()
		underflows++
	}
	s.regs[RegTCNT1].Store(cnt)
	s.counter.Unlock()

	for i := 0; i < underflows; i++ {
		s.regs[RegTCR1].Or(TCR_UNF)
		if s.Read16(RegTCR1)&TCR_UNIE != 0 {
			s.raise()
		}
	}
	return underflows
}

// ForceUnderflow sets TCR.UNF and raises the attached line regardless of
// TCR.UNIE or TSTR, as if the line fired while the flag was latched.
func (s *SimBlock) ForceUnderflow() IRQReturn {
	s.regs[RegTCR1].Or(TCR_UNF)
	return s.raise()
}

// Pulse raises the attached line without touching any TMU state, the way
// another device sharing the line would.
func (s *SimBlock) Pulse() IRQReturn {
	return s.raise()
}

func (s *SimBlock) raise() IRQReturn {
	line := s.line.Load()
	if line == nil {
		return IRQNone
	}
	return line.Raise()
}
