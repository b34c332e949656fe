// Package proc models the user processes that receive timer notifications.
//
// Delivery follows standard (non real-time) signal semantics: each process
// has a pending mask, so a signal posted while the same signal is still
// pending is merged into it. Posting never blocks and never allocates,
// which makes Table safe to use as a core.Notifier from interrupt context.
package proc

import (
	"sync"
	"sync/atomic"

	"shdrv/core"
)

// Handler is a signal handler installed with Process.Handle
type Handler func(sig core.SigNo)

// Process is a simulated process with its own signal dispatcher goroutine
type Process struct {
	pid  core.Pid
	name string

	pending atomic.Uint64
	wake    chan struct{}
	done    chan struct{}
	exited  atomic.Bool

	mu       sync.Mutex
	handlers map[core.SigNo]Handler
	fallback Handler

	delivered atomic.Uint64
	ignored   atomic.Uint64
}

// Table is the process table. Lookups from Notify are lock free; Spawn
// and Exit publish a new copy of the map.
type Table struct {
	mu    sync.Mutex
	procs atomic.Pointer[map[core.Pid]*Process]
	next  core.Pid
}

// NewTable creates an empty table. Pids start at 100.
func NewTable() *Table {
	t := &Table{next: 100}
	empty := make(map[core.Pid]*Process)
	t.procs.Store(&empty)
	return t
}

// Spawn creates a process and starts its signal dispatcher
func (t *Table) Spawn(name string) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()

	pid := t.next
	t.next++
	p := &Process{
		pid:      pid,
		name:     name,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		handlers: make(map[core.SigNo]Handler),
	}

	cur := *t.procs.Load()
	next := make(map[core.Pid]*Process, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[pid] = p
	t.procs.Store(&next)

	go p.dispatch()
	return p
}

// Lookup returns the live process with the given pid
func (t *Table) Lookup(pid core.Pid) (*Process, bool) {
	p, ok := (*t.procs.Load())[pid]
	return p, ok
}

// Exit removes a process and stops its dispatcher. Pending signals are
// discarded.
func (t *Table) Exit(pid core.Pid) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := *t.procs.Load()
	p, ok := cur[pid]
	if !ok {
		return
	}
	next := make(map[core.Pid]*Process, len(cur))
	for k, v := range cur {
		if k != pid {
			next[k] = v
		}
	}
	t.procs.Store(&next)

	if p.exited.CompareAndSwap(false, true) {
		close(p.done)
	}
}

// Notify posts sig to pid. Unknown or exited pids are ignored.
func (t *Table) Notify(pid core.Pid, sig core.SigNo) {
	p, ok := (*t.procs.Load())[pid]
	if !ok {
		return
	}
	p.post(sig)
}

// Pid returns the process identity
func (p *Process) Pid() core.Pid {
	return p.pid
}

// Name returns the name given at Spawn
func (p *Process) Name() string {
	return p.name
}

// Handle installs h for sig, replacing any previous handler.
// A nil h resets the signal to ignored.
func (p *Process) Handle(sig core.SigNo, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h == nil {
		delete(p.handlers, sig)
		return
	}
	p.handlers[sig] = h
}

// HandleDefault installs h for every signal without its own handler
func (p *Process) HandleDefault(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = h
}

// Delivered returns how many handler invocations have run
func (p *Process) Delivered() uint64 {
	return p.delivered.Load()
}

// Ignored returns how many signals arrived with no handler installed
func (p *Process) Ignored() uint64 {
	return p.ignored.Load()
}

// Done is closed when the process exits
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) post(sig core.SigNo) {
	if sig <= 0 || sig >= core.NSIG || p.exited.Load() {
		return
	}
	bit := uint64(1) << uint(sig-1)
	for {
		mask := p.pending.Load()
		if mask&bit != 0 {
			return // already pending
		}
		if p.pending.CompareAndSwap(mask, mask|bit) {
			break
		}
	}
	select {
	case p.wake <- struct{}{}:
	default:
		// dispatcher already has a wakeup queued
	}
}

func (p *Process) dispatch() {
	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}

		mask := p.pending.Swap(0)
		for sig := core.SigNo(1); mask != 0; sig++ {
			if mask&1 != 0 {
				p.run(sig)
			}
			mask >>= 1
		}
	}
}

func (p *Process) run(sig core.SigNo) {
	p.mu.Lock()
	h, ok := p.handlers[sig]
	if !ok {
		h = p.fallback
	}
	p.mu.Unlock()

	if h == nil {
		p.ignored.Add(1)
		return
	}
	h(sig)
	p.delivered.Add(1)
}
