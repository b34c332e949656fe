//go:build unix

package main

import (
	"os"
	"os/signal"

	"shdrv/core"
	"shdrv/proc"
)

// hostProcess makes this OS process the notification target. The driver
// sends real signals with kill(2) and fn runs for each SIGUSR1 received.
func hostProcess(fn func()) (core.Notifier, core.Pid, func(), error) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, proc.HostSignal(core.SIGUSR1))

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			case <-ch:
				fn()
			}
		}
	}()

	stop := func() {
		signal.Stop(ch)
		close(quit)
		<-done
	}
	return proc.KillNotifier{}, core.Pid(os.Getpid()), stop, nil
}
