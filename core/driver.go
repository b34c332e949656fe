package core

import (
	"log/slog"
	"sync"
)

// Config holds driver construction options
type Config struct {
	// IRQ is the interrupt line of TMU channel 1 (default TimerIRQ)
	IRQ int

	// CallerSignal enables IOCTL_MYTIMER_SETSIG
	CallerSignal bool

	Logger *slog.Logger
	Events *EventBus
}

// Driver owns both devices for the lifetime between NewDriver and Close
type Driver struct {
	LED   *LEDDevice
	Timer *TimerDevice

	irqs  *IRQController
	irq   int
	trace *Trace
	log   *slog.Logger

	closeOnce sync.Once
}

// NewDriver brings up the LED and timer devices on regs and registers the
// timer interrupt handler on the shared line. A failed IRQ registration is
// logged, not fatal: the devices still open and arm, but nothing is
// delivered.
func NewDriver(regs RegisterBlock, irqs *IRQController, notifier Notifier, cfg Config) *Driver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IRQ == 0 {
		cfg.IRQ = TimerIRQ
	}

	d := &Driver{
		irqs:  irqs,
		irq:   cfg.IRQ,
		trace: &Trace{},
		log:   cfg.Logger,
	}
	d.LED = NewLEDDevice(regs, cfg.Logger, cfg.Events)
	d.Timer = newTimerDevice(regs, notifier, cfg, d.trace)

	if err := irqs.Request(d.irq, timerIRQName, d.Timer.interrupt); err != nil {
		d.log.Error("Error request_irq", "irq", d.irq, "err", err)
	}
	return d
}

// Trace returns the driver's event ring
func (d *Driver) Trace() *Trace {
	return d.trace
}

// Close stops the timer, releases the interrupt registration and drops the
// notification target. Sessions still open afterwards get ErrNoSuchDevice.
// Safe to call more than once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.Timer.shutdown()
		d.LED.shutdown()
		d.irqs.Free(d.irq, timerIRQName)
		d.log.Info("driver stopped")
	})
	return nil
}
