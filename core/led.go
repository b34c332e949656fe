// LED output device
// One session at a time; reads and writes within it are serialized
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const (
	LEDDevName = "myled"
	LEDDevNum  = 1 // Supported minors

	LEDOff = '0'
	LEDOn  = '1'
)

// LEDDevice drives SCPDR bit 0x10
type LEDDevice struct {
	regs   RegisterBlock
	log    *slog.Logger
	events *EventBus

	// lock guards accessCount
	lock        sync.Mutex
	accessCount int

	// gone is set at driver teardown
	gone atomic.Bool

	// sem serializes Read/Write/Close of the open session
	sem *semaphore.Weighted
}

// LEDSession is one open of the LED device. It is single use: after Close
// every operation returns ErrSessionClosed.
type LEDSession struct {
	dev    *LEDDevice
	closed atomic.Bool

	// buf holds the last command byte; guarded by dev.sem, nil once closed
	buf []byte
}

// NewLEDDevice creates the LED device on top of regs
func NewLEDDevice(regs RegisterBlock, log *slog.Logger, events *EventBus) *LEDDevice {
	if log == nil {
		log = slog.Default()
	}
	return &LEDDevice{
		regs:   regs,
		log:    log.With("dev", LEDDevName),
		events: events,
		sem:    semaphore.NewWeighted(1),
	}
}

// Open starts a session. Fails with ErrNoSuchDevice for an unsupported
// minor and ErrBusy if a session is already open.
func (d *LEDDevice) Open(minor int) (*LEDSession, error) {
	if minor < 0 || minor >= LEDDevNum {
		d.log.Error("open() error", "minor", minor)
		return nil, fmt.Errorf("%s minor %d: %w", LEDDevName, minor, ErrNoSuchDevice)
	}

	d.lock.Lock()
	if d.gone.Load() {
		d.lock.Unlock()
		return nil, fmt.Errorf("%s: %w", LEDDevName, ErrNoSuchDevice)
	}
	if d.accessCount > 0 {
		d.lock.Unlock()
		ledBusy.Inc()
		return nil, fmt.Errorf("%s: %w", LEDDevName, ErrBusy)
	}
	d.accessCount++
	d.lock.Unlock()

	return &LEDSession{dev: d, buf: make([]byte, 1)}, nil
}

// shutdown refuses new opens and I/O on sessions still open
func (d *LEDDevice) shutdown() {
	d.lock.Lock()
	d.gone.Store(true)
	d.lock.Unlock()
}

// Lit reports the actual state of the LED line
func (d *LEDDevice) Lit() bool {
	return d.regs.Read8(RegSCPDR)&SCPDR_LED != 0
}

// Sessions returns the number of open sessions (0 or 1)
func (d *LEDDevice) Sessions() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.accessCount
}

func (d *LEDDevice) set(on bool) {
	state := disableInterrupts()
	if on {
		setBits8(d.regs, RegSCPDR, SCPDR_LED)
	} else {
		clearBits8(d.regs, RegSCPDR, SCPDR_LED)
	}
	restoreInterrupts(state)
	d.events.publishLEDChanged(LEDChangedEvent{On: on})
}

// acquire takes the serialization semaphore. A cancelled ctx aborts the wait.
func (s *LEDSession) acquire(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if err := s.dev.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s: %w", LEDDevName, ErrInterrupted)
	}
	if s.buf == nil {
		s.dev.sem.Release(1)
		return ErrSessionClosed
	}
	if s.dev.gone.Load() {
		s.dev.sem.Release(1)
		return fmt.Errorf("%s: %w", LEDDevName, ErrNoSuchDevice)
	}
	return nil
}

// Write consumes exactly one byte from p: '0' turns the LED off, '1' turns
// it on. Any other value is logged and accepted without touching the
// hardware.
func (s *LEDSession) Write(ctx context.Context, p []byte) (int, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.dev.sem.Release(1)

	if len(p) < 1 {
		s.dev.log.Error("Error copy_from_user", "len", len(p))
		return 0, fmt.Errorf("%s write: %w", LEDDevName, ErrCopyFault)
	}
	s.buf[0] = p[0]

	switch s.buf[0] {
	case LEDOff:
		s.dev.set(false)
		ledWrites.WithLabelValues("off").Inc()
	case LEDOn:
		s.dev.set(true)
		ledWrites.WithLabelValues("on").Inc()
	default:
		s.dev.log.Error("Error invalid value", "value", fmt.Sprintf("%q", s.buf[0]))
		ledWrites.WithLabelValues("invalid").Inc()
	}
	return 1, nil
}

// Read copies the last command byte written in this session into p.
// It does not sample the pin.
func (s *LEDSession) Read(ctx context.Context, p []byte) (int, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.dev.sem.Release(1)

	if len(p) < 1 {
		s.dev.log.Error("Error copy_to_user", "len", len(p))
		return 0, fmt.Errorf("%s read: %w", LEDDevName, ErrCopyFault)
	}
	p[0] = s.buf[0]
	return 1, nil
}

// Close releases the session. It waits for an in-flight Read or Write of
// this session to finish. A second Close returns ErrSessionClosed.
func (s *LEDSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}

	_ = s.dev.sem.Acquire(context.Background(), 1)
	s.buf = nil
	s.dev.sem.Release(1)

	s.dev.lock.Lock()
	s.dev.accessCount--
	s.dev.lock.Unlock()
	return nil
}
