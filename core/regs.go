// Register interface for the SH7706 TMU channel 1 and port SC
// Core code never touches raw addresses; it goes through a RegisterBlock
package core

// Register identifies one of the memory-mapped registers the drivers use
type Register uint8

const (
	RegTSTR  Register = iota // 8bit timer start register (shared by all TMU channels)
	RegTCOR1                 // 32bit timer constant register, channel 1
	RegTCNT1                 // 32bit timer counter, channel 1
	RegTCR1                  // 16bit timer control register, channel 1
	RegSCPDR                 // 8bit port SC data register
	numRegisters
)

// Physical addresses (P4 / P2 area) of each register
const (
	AddrTSTR  = 0xfffffe92
	AddrTCOR1 = 0xfffffea0
	AddrTCNT1 = 0xfffffea4
	AddrTCR1  = 0xfffffea8
	AddrSCPDR = 0xa4000136
)

// TCR bits
const (
	TCR_UNF      = 0x0100 // Underflow flag, cleared by writing 0
	TCR_UNIE     = 0x0020 // Underflow interrupt enable
	TCR_TPSC_4   = 0x0000 // Counter clock Pφ/4
	TCR_TPSC_16  = 0x0001 // Counter clock Pφ/16
	TCR_TPSC_64  = 0x0002 // Counter clock Pφ/64
	TCR_TPSC_256 = 0x0003 // Counter clock Pφ/256
	TCR_TPSCMask = 0x0007
)

// TSTR bits
const (
	TSTR_STR0 = 0x01
	TSTR_STR1 = 0x02
	TSTR_STR2 = 0x04
)

// SCPDR_LED is the port SC line wired to the LED
const SCPDR_LED = 0x10

var registerNames = [numRegisters]string{
	RegTSTR:  "TSTR",
	RegTCOR1: "TCOR1",
	RegTCNT1: "TCNT1",
	RegTCR1:  "TCR1",
	RegSCPDR: "SCPDR",
}

var registerWidths = [numRegisters]uint8{
	RegTSTR:  8,
	RegTCOR1: 32,
	RegTCNT1: 32,
	RegTCR1:  16,
	RegSCPDR: 8,
}

var registerAddrs = [numRegisters]uint32{
	RegTSTR:  AddrTSTR,
	RegTCOR1: AddrTCOR1,
	RegTCNT1: AddrTCNT1,
	RegTCR1:  AddrTCR1,
	RegSCPDR: AddrSCPDR,
}

func (r Register) String() string {
	if r >= numRegisters {
		return "REG(" + itoa(int(r)) + ")"
	}
	return registerNames[r]
}

// Width returns the access width of the register in bits
func (r Register) Width() uint8 {
	if r >= numRegisters {
		return 0
	}
	return registerWidths[r]
}

// Addr returns the fixed physical address of the register
func (r Register) Addr() uint32 {
	if r >= numRegisters {
		return 0
	}
	return registerAddrs[r]
}

// RegisterBlock is the capability handed to the drivers at init.
// Every access is a direct read or write of the declared width; there is
// no caching and accesses never fail.
// Implementations may assume callers use the accessor matching Width().
type RegisterBlock interface {
	Read8(r Register) uint8
	Write8(r Register, v uint8)
	Read16(r Register) uint16
	Write16(r Register, v uint16)
	Read32(r Register) uint32
	Write32(r Register, v uint32)
}

// setBits8 / clearBits8 / clearBits16 are read/modify/write helpers.
// Callers must hold the critical section when the register is shared with
// interrupt context or other channels.

func setBits8(b RegisterBlock, r Register, mask uint8) {
	b.Write8(r, b.Read8(r)|mask)
}

func clearBits8(b RegisterBlock, r Register, mask uint8) {
	b.Write8(r, b.Read8(r)&^mask)
}

func clearBits16(b RegisterBlock, r Register, mask uint16) {
	b.Write16(r, b.Read16(r)&^mask)
}
