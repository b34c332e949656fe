package core

import (
	"context"
	"errors"
	"sync"
)

// ErrBadHandle is returned for a handle that does not name an open session
var ErrBadHandle = errors.New("bad handle")

// ErrTooManyFiles is returned when every handle is in use
var ErrTooManyFiles = errors.New("too many open files")

// FileTable is the set of device sessions one process has open, keyed by
// small integer handles. Handles are never 0.
type FileTable struct {
	ctx context.Context
	pid Pid

	mu     sync.Mutex
	leds   map[uint8]*LEDSession
	timers map[uint8]*TimerSession
}

// NewFileTable creates an empty table for pid. Blocking operations run
// with ctx, so cancelling it interrupts them.
func NewFileTable(ctx context.Context, pid Pid) *FileTable {
	return &FileTable{
		ctx:    WithPid(ctx, pid),
		pid:    pid,
		leds:   make(map[uint8]*LEDSession),
		timers: make(map[uint8]*TimerSession),
	}
}

// Pid returns the owning process
func (f *FileTable) Pid() Pid {
	return f.pid
}

// Context returns the owner's context, tagged with its pid
func (f *FileTable) Context() context.Context {
	return f.ctx
}

// allocHandle returns the lowest free handle (caller holds mu)
func (f *FileTable) allocHandle() (uint8, error) {
	for h := 1; h <= 255; h++ {
		_, led := f.leds[uint8(h)]
		_, tmr := f.timers[uint8(h)]
		if !led && !tmr {
			return uint8(h), nil
		}
	}
	return 0, ErrTooManyFiles
}

// AddLED stores an LED session and returns its handle
func (f *FileTable) AddLED(s *LEDSession) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, err := f.allocHandle()
	if err != nil {
		return 0, err
	}
	f.leds[h] = s
	return h, nil
}

// AddTimer stores a timer session and returns its handle
func (f *FileTable) AddTimer(s *TimerSession) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, err := f.allocHandle()
	if err != nil {
		return 0, err
	}
	f.timers[h] = s
	return h, nil
}

// LED returns the LED session for h
func (f *FileTable) LED(h uint8) (*LEDSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.leds[h]
	if !ok {
		return nil, ErrBadHandle
	}
	return s, nil
}

// Timer returns the timer session for h
func (f *FileTable) Timer(h uint8) (*TimerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.timers[h]
	if !ok {
		return nil, ErrBadHandle
	}
	return s, nil
}

// CloseLED removes and closes the LED session for h
func (f *FileTable) CloseLED(h uint8) error {
	f.mu.Lock()
	s, ok := f.leds[h]
	delete(f.leds, h)
	f.mu.Unlock()
	if !ok {
		return ErrBadHandle
	}
	return s.Close()
}

// CloseTimer removes and closes the timer session for h
func (f *FileTable) CloseTimer(h uint8) error {
	f.mu.Lock()
	s, ok := f.timers[h]
	delete(f.timers, h)
	f.mu.Unlock()
	if !ok {
		return ErrBadHandle
	}
	return s.Close()
}

// CloseAll closes every open session, as on process exit
func (f *FileTable) CloseAll() {
	f.mu.Lock()
	leds, timers := f.leds, f.timers
	f.leds = make(map[uint8]*LEDSession)
	f.timers = make(map[uint8]*TimerSession)
	f.mu.Unlock()

	for _, s := range leds {
		_ = s.Close()
	}
	for _, s := range timers {
		_ = s.Close()
	}
}
