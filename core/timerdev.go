// Periodic timer device
// Arming records the caller as notification target and starts TMU channel 1;
// every underflow interrupt then notifies the target.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	TimerDevName = "mytimer"
	TimerDevNum  = 1  // Supported minors
	TimerIRQ     = 17 // TMU1 (TMU0=16 belongs to the kernel tick)

	timerIRQName = "mytimer_intr"
)

// TimerDevice is the periodic notification timer
type TimerDevice struct {
	unit     *TimerUnit
	target   TargetRegistry
	notifier Notifier
	log      *slog.Logger
	events   *EventBus
	trace    *Trace

	// maxNr is the highest accepted ioctl command index
	maxNr uint32

	// mu orders Arm against shutdown; once closed the timer stays stopped
	mu     sync.Mutex
	closed bool
}

// TimerSession is one open of the timer device
type TimerSession struct {
	dev    *TimerDevice
	closed atomic.Bool
}

func newTimerDevice(regs RegisterBlock, notifier Notifier, cfg Config, trace *Trace) *TimerDevice {
	d := &TimerDevice{
		unit:     NewTimerUnit(regs),
		notifier: notifier,
		log:      cfg.Logger.With("dev", TimerDevName),
		events:   cfg.Events,
		trace:    trace,
		maxNr:    IOCTL_MYTIMER_MAX,
	}
	if cfg.CallerSignal {
		d.maxNr = IOCTL_MYTIMER_MAXSIG
	}
	return d
}

// Open starts a session. Sessions are not exclusive.
func (d *TimerDevice) Open(minor int) (*TimerSession, error) {
	if minor < 0 || minor >= TimerDevNum {
		d.log.Error("open() error", "minor", minor)
		return nil, fmt.Errorf("%s minor %d: %w", TimerDevName, minor, ErrNoSuchDevice)
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%s: %w", TimerDevName, ErrNoSuchDevice)
	}
	return &TimerSession{dev: d}, nil
}

// Target returns the current notification target
func (d *TimerDevice) Target() Target {
	return d.target.Load()
}

// Running reports whether the hardware timer is generating interrupts
func (d *TimerDevice) Running() bool {
	return d.unit.Running()
}

// Arm records {pid, sig} as the notification target, replacing any
// previous one, then programs and starts the timer. After shutdown it
// returns ErrNoSuchDevice and leaves the hardware alone.
func (d *TimerDevice) Arm(pid Pid, sig SigNo) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("%s: %w", TimerDevName, ErrNoSuchDevice)
	}
	d.target.Set(pid, sig)
	d.unit.Program()
	count := d.unit.Count()
	d.mu.Unlock()

	timerArms.Inc()
	d.trace.Record(EvtArm, count, uint32(pid), uint32(sig))
	d.log.Info("armed", "pid", pid, "signo", sig)
	d.events.publishArmed(ArmedEvent{Pid: pid, Sig: sig})
	return nil
}

// shutdown stops the timer for good and drops the target
func (d *TimerDevice) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.stop()
	d.target.Clear()
}

// stop halts the hardware timer. The registry is left to the caller.
func (d *TimerDevice) stop() {
	d.unit.Stop()
	d.trace.Record(EvtStop, d.unit.Count(), 0, 0)
	d.events.publishDisarmed()
}

// interrupt is the IRQ handler. It acknowledges UNF before anything else,
// then notifies the target if the timer is still enabled.
func (d *TimerDevice) interrupt(irq int) IRQReturn {
	regs := d.unit.regs

	state := disableInterrupts()
	tcr := regs.Read16(RegTCR1)
	if tcr&TCR_UNF == 0 {
		restoreInterrupts(state)
		return IRQNone
	}
	regs.Write16(RegTCR1, tcr&^TCR_UNF)
	restoreInterrupts(state)

	timerUnderflows.Inc()
	count := regs.Read32(RegTCNT1)

	// A flag latched before Stop must not reach a stale target
	if tcr&TCR_UNIE == 0 {
		d.trace.Record(EvtStale, count, uint32(tcr), 0)
		return IRQHandled
	}
	d.trace.Record(EvtUnderflow, count, uint32(tcr), 0)

	t := d.target.Load()
	if t.Sig != 0 && d.notifier != nil {
		d.notifier.Notify(t.Pid, t.Sig)
		timerNotifications.Inc()
		d.trace.Record(EvtNotify, count, uint32(t.Pid), uint32(t.Sig))
	}
	return IRQHandled
}

// Ioctl handles a control request. The caller is taken from ctx (WithPid).
//
// The command's magic must be IOC_MYTIMER_MAGIC (ErrInvalidRequest) and its
// index must not exceed the supported maximum (ErrOutOfRange).
// IOCTL_MYTIMER_SET arms the caller with SIGUSR1; IOCTL_MYTIMER_SETSIG
// arms it with the signal in arg when the driver allows caller signals.
func (s *TimerSession) Ioctl(ctx context.Context, cmd uint32, arg uint32) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	d := s.dev

	if IOCType(cmd) != IOC_MYTIMER_MAGIC {
		d.log.Error("MAGIC NUM error", "cmd", fmt.Sprintf("%#x", cmd), "type", IOCType(cmd))
		return fmt.Errorf("%s ioctl %#x: %w", TimerDevName, cmd, ErrInvalidRequest)
	}
	if IOCNr(cmd) > d.maxNr {
		d.log.Error("COMMAND NUM error", "cmd", fmt.Sprintf("%#x", cmd), "nr", IOCNr(cmd))
		return fmt.Errorf("%s ioctl %#x: %w", TimerDevName, cmd, ErrOutOfRange)
	}

	pid, ok := PidFromContext(ctx)
	if !ok {
		d.log.Error("ioctl without caller", "cmd", fmt.Sprintf("%#x", cmd))
		return fmt.Errorf("%s ioctl %#x: no caller: %w", TimerDevName, cmd, ErrInvalidRequest)
	}

	switch cmd {
	case IOCTL_MYTIMER_SET:
		return d.Arm(pid, SIGUSR1)
	case IOCTL_MYTIMER_SETSIG:
		sig := SigNo(arg)
		if sig <= 0 || sig >= NSIG {
			d.log.Error("invalid signo", "signo", arg)
			return fmt.Errorf("%s signo %d: %w", TimerDevName, arg, ErrInvalidRequest)
		}
		return d.Arm(pid, sig)
	}
	d.log.Error("ioctl error", "cmd", fmt.Sprintf("%#x", cmd))
	return fmt.Errorf("%s ioctl %#x: %w", TimerDevName, cmd, ErrInvalidRequest)
}

// Close ends the session. The timer keeps running until driver teardown.
func (s *TimerSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}
	return nil
}
