//go:build unix

package proc

import (
	"golang.org/x/sys/unix"

	"shdrv/core"
)

// KillNotifier delivers notifications as real signals to OS processes.
// Pids that no longer exist are ignored.
type KillNotifier struct{}

// Notify sends sig to pid with kill(2)
func (KillNotifier) Notify(pid core.Pid, sig core.SigNo) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(int(pid), HostSignal(sig))
}

// HostSignal maps a board signal number onto the host's numbering
func HostSignal(sig core.SigNo) unix.Signal {
	switch sig {
	case core.SIGUSR1:
		return unix.SIGUSR1
	case core.SIGUSR2:
		return unix.SIGUSR2
	}
	return unix.Signal(sig)
}
