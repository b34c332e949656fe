//go:build linux

package core

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SH3 physical addresses are 29 bits; the P2/P4 views map onto them
const physMask = 0x1fffffff

// MemBlock is a RegisterBlock backed by /dev/mem mappings of the pages
// holding the TMU and port SC registers.
type MemBlock struct {
	file    *os.File
	windows []memWindow
	regs    [numRegisters]unsafe.Pointer
}

type memWindow struct {
	base uint32
	mem  []byte
}

// OpenMemBlock maps the register pages from path (normally /dev/mem)
func OpenMemBlock(path string) (*MemBlock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	m := &MemBlock{file: f}
	pageSize := uint32(os.Getpagesize())

	for r := Register(0); r < numRegisters; r++ {
		phys := r.Addr() & physMask
		base := phys &^ (pageSize - 1)
		w := m.window(base)
		if w == nil {
			mem, err := unix.Mmap(int(f.Fd()), int64(base), int(pageSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
			if err != nil {
				m.Close()
				return nil, fmt.Errorf("mmap %s at %#x: %w", path, base, err)
			}
			m.windows = append(m.windows, memWindow{base: base, mem: mem})
			w = &m.windows[len(m.windows)-1]
		}
		m.regs[r] = unsafe.Pointer(&w.mem[phys-base])
	}
	return m, nil
}

func (m *MemBlock) window(base uint32) *memWindow {
	for i := range m.windows {
		if m.windows[i].base == base {
			return &m.windows[i]
		}
	}
	return nil
}

// Close unmaps the register pages
func (m *MemBlock) Close() error {
	for _, w := range m.windows {
		unix.Munmap(w.mem)
	}
	m.windows = nil
	m.regs = [numRegisters]unsafe.Pointer{}
	if m.file != nil {
		err := m.file.Close()
		m.file = nil
		return err
	}
	return nil
}

func (m *MemBlock) Read8(r Register) uint8 {
	return *(*uint8)(m.regs[r])
}

func (m *MemBlock) Write8(r Register, v uint8) {
	*(*uint8)(m.regs[r]) = v
}

func (m *MemBlock) Read16(r Register) uint16 {
	return *(*uint16)(m.regs[r])
}

func (m *MemBlock) Write16(r Register, v uint16) {
	*(*uint16)(m.regs[r]) = v
}

// 32bit accesses go through sync/atomic so the compiler emits a single
// full-width load or store.

func (m *MemBlock) Read32(r Register) uint32 {
	return atomic.LoadUint32((*uint32)(m.regs[r]))
}

func (m *MemBlock) Write32(r Register, v uint32) {
	atomic.StoreUint32((*uint32)(m.regs[r]), v)
}
