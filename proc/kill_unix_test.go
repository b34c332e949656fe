//go:build unix

package proc

import (
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"shdrv/core"
)

func TestHostSignal(t *testing.T) {
	assert.Equal(t, unix.SIGUSR1, HostSignal(core.SIGUSR1))
	assert.Equal(t, unix.SIGUSR2, HostSignal(core.SIGUSR2))
	assert.Equal(t, unix.Signal(15), HostSignal(15))
}

func TestKillNotifier(t *testing.T) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR2)
	defer signal.Stop(ch)

	KillNotifier{}.Notify(core.Pid(os.Getpid()), core.SIGUSR2)
	select {
	case sig := <-ch:
		assert.Equal(t, syscall.SIGUSR2, sig)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}

	// Pid 0 would signal the process group
	KillNotifier{}.Notify(0, core.SIGUSR2)
}
