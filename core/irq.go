// Interrupt line dispatch
// Handlers registered on a line run in interrupt context: they must not
// block, sleep, or allocate, and must return quickly.
package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// IRQReturn is what a handler reports back to the line
type IRQReturn uint8

const (
	IRQNone    IRQReturn = 0 // Not raised by this handler's device
	IRQHandled IRQReturn = 1 // Serviced
)

// IRQHandler services one interrupt on the given line
type IRQHandler func(irq int) IRQReturn

// ErrIRQBusy is returned when a handler name is already registered on a line
var ErrIRQBusy = errors.New("irq handler already registered")

type irqAction struct {
	name    string
	handler IRQHandler
}

// IRQLine is a single, possibly shared, interrupt line
type IRQLine struct {
	irq int

	// mu serializes Request/Free; Raise reads the action list lock free
	mu      sync.Mutex
	actions atomic.Pointer[[]irqAction]

	unhandled atomic.Uint64
}

// IRQController owns the interrupt lines of the board
type IRQController struct {
	mu    sync.Mutex
	lines map[int]*IRQLine
}

// NewIRQController creates an empty controller
func NewIRQController() *IRQController {
	return &IRQController{lines: make(map[int]*IRQLine)}
}

// Line returns the line for irq, creating it on first use
func (c *IRQController) Line(irq int) *IRQLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lines[irq]
	if !ok {
		l = &IRQLine{irq: irq}
		c.lines[irq] = l
	}
	return l
}

// Request adds a named handler to a shared line
func (c *IRQController) Request(irq int, name string, h IRQHandler) error {
	return c.Line(irq).add(name, h)
}

// Free removes a named handler from a line. Unknown names are ignored.
func (c *IRQController) Free(irq int, name string) {
	c.Line(irq).remove(name)
}

// IRQ returns the line number
func (l *IRQLine) IRQ() int {
	return l.irq
}

// Unhandled returns how many raises no handler claimed
func (l *IRQLine) Unhandled() uint64 {
	return l.unhandled.Load()
}

func (l *IRQLine) add(name string, h IRQHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cur []irqAction
	if p := l.actions.Load(); p != nil {
		cur = *p
	}
	for _, a := range cur {
		if a.name == name {
			return ErrIRQBusy
		}
	}
	next := make([]irqAction, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, irqAction{name: name, handler: h})
	l.actions.Store(&next)
	return nil
}

func (l *IRQLine) remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.actions.Load()
	if p == nil {
		return
	}
	next := make([]irqAction, 0, len(*p))
	for _, a := range *p {
		if a.name != name {
			next = append(next, a)
		}
	}
	l.actions.Store(&next)
}

// Raise delivers one interrupt to every handler on the line and reports
// whether any of them claimed it
func (l *IRQLine) Raise() IRQReturn {
	ret := IRQNone
	if p := l.actions.Load(); p != nil {
		for _, a := range *p {
			ret |= a.handler(l.irq)
		}
	}
	if ret == IRQNone {
		l.unhandled.Add(1)
		irqUnhandled.Inc()
	}
	return ret
}

// Poller stands in for the interrupt controller when the registers are
// mapped from user space: it samples TCR.UNF and raises the line when set.
type Poller struct {
	regs     RegisterBlock
	line     *IRQLine
	interval time.Duration
}

// NewPoller creates a poller sampling regs every interval
func NewPoller(regs RegisterBlock, line *IRQLine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &Poller{regs: regs, line: line, interval: interval}
}

// Run polls until ctx is done
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll raises the line once if an underflow is pending
func (p *Poller) Poll() bool {
	if p.regs.Read16(RegTCR1)&TCR_UNF == 0 {
		return false
	}
	p.line.Raise()
	return true
}
