package core

import (
	"context"
	"sync/atomic"
)

// Pid identifies the process a notification is delivered to. 0 means none.
type Pid int32

// SigNo is a notification code. 0 means none.
type SigNo int32

// Signal numbers (SH Linux numbering)
const (
	SIGUSR1 SigNo = 10
	SIGUSR2 SigNo = 12
	NSIG    SigNo = 64
)

// Target is the process and code the interrupt handler notifies.
// Records are immutable once published.
type Target struct {
	Pid Pid
	Sig SigNo
}

// TargetRegistry holds the single notification target.
// Writers replace the whole record, so interrupt context never observes a
// half-updated pair.
type TargetRegistry struct {
	cur atomic.Pointer[Target]
}

// Set publishes a new target, replacing any previous one
func (r *TargetRegistry) Set(pid Pid, sig SigNo) {
	r.cur.Store(&Target{Pid: pid, Sig: sig})
}

// Load returns a snapshot of the current target (zero value if none)
func (r *TargetRegistry) Load() Target {
	if t := r.cur.Load(); t != nil {
		return *t
	}
	return Target{}
}

// Clear drops the target
func (r *TargetRegistry) Clear() {
	r.cur.Store(nil)
}

// Notifier delivers a notification to a process. Implementations are
// called from interrupt context: they must not block, and delivery to a
// process that no longer exists is silently dropped.
type Notifier interface {
	Notify(pid Pid, sig SigNo)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(pid Pid, sig SigNo)

func (f NotifierFunc) Notify(pid Pid, sig SigNo) {
	f(pid, sig)
}

type pidKey struct{}

// WithPid tags ctx with the calling process
func WithPid(ctx context.Context, pid Pid) context.Context {
	return context.WithValue(ctx, pidKey{}, pid)
}

// PidFromContext returns the calling process recorded by WithPid
func PidFromContext(ctx context.Context) (Pid, bool) {
	pid, ok := ctx.Value(pidKey{}).(Pid)
	return pid, ok
}
