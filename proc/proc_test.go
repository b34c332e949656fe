package proc

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shdrv/core"
)

func TestSpawnAssignsPids(t *testing.T) {
	tab := NewTable()
	a := tab.Spawn("a")
	b := tab.Spawn("b")
	defer tab.Exit(a.Pid())
	defer tab.Exit(b.Pid())

	assert.Equal(t, core.Pid(100), a.Pid())
	assert.Equal(t, core.Pid(101), b.Pid())
	assert.Equal(t, "b", b.Name())

	got, ok := tab.Lookup(a.Pid())
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestNotifyRunsHandler(t *testing.T) {
	tab := NewTable()
	p := tab.Spawn("test")
	defer tab.Exit(p.Pid())

	got := make(chan core.SigNo, 4)
	p.Handle(core.SIGUSR1, func(sig core.SigNo) { got <- sig })

	tab.Notify(p.Pid(), core.SIGUSR1)
	select {
	case sig := <-got:
		assert.Equal(t, core.SIGUSR1, sig)
	case <-time.After(time.Second):
		t.Fatal("handler not run")
	}
	require.Eventually(t, func() bool { return p.Delivered() == 1 }, time.Second, time.Millisecond)
}

func TestNotifyIgnoredWithoutHandler(t *testing.T) {
	tab := NewTable()
	p := tab.Spawn("test")
	defer tab.Exit(p.Pid())

	tab.Notify(p.Pid(), core.SIGUSR2)
	require.Eventually(t, func() bool { return p.Ignored() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, p.Delivered())
}

func TestHandleDefault(t *testing.T) {
	tab := NewTable()
	p := tab.Spawn("test")
	defer tab.Exit(p.Pid())

	var usr1, other atomic.Int32
	p.Handle(core.SIGUSR1, func(core.SigNo) { usr1.Add(1) })
	p.HandleDefault(func(sig core.SigNo) {
		assert.Equal(t, core.SigNo(20), sig)
		other.Add(1)
	})

	tab.Notify(p.Pid(), core.SIGUSR1)
	require.Eventually(t, func() bool { return usr1.Load() == 1 }, time.Second, time.Millisecond)
	tab.Notify(p.Pid(), 20)
	require.Eventually(t, func() bool { return other.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), usr1.Load())
}

func TestPendingSignalsCoalesce(t *testing.T) {
	tab := NewTable()
	p := tab.Spawn("test")
	defer tab.Exit(p.Pid())

	release := make(chan struct{})
	var calls atomic.Int32
	p.Handle(core.SIGUSR1, func(core.SigNo) {
		calls.Add(1)
		<-release
	})

	// First delivery blocks in the handler
	tab.Notify(p.Pid(), core.SIGUSR1)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	// These merge into one pending signal
	for i := 0; i < 10; i++ {
		tab.Notify(p.Pid(), core.SIGUSR1)
	}
	close(release)

	require.Eventually(t, func() bool { return p.Delivered() == 2 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotifyAfterExit(t *testing.T) {
	tab := NewTable()
	p := tab.Spawn("test")

	var calls atomic.Int32
	p.Handle(core.SIGUSR1, func(core.SigNo) { calls.Add(1) })

	tab.Exit(p.Pid())
	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed on exit")
	}
	_, ok := tab.Lookup(p.Pid())
	assert.False(t, ok)

	tab.Notify(p.Pid(), core.SIGUSR1)
	tab.Notify(999, core.SIGUSR1)
	tab.Exit(p.Pid())
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestNotifyRejectsBadSignals(t *testing.T) {
	tab := NewTable()
	p := tab.Spawn("test")
	defer tab.Exit(p.Pid())

	p.HandleDefault(func(core.SigNo) { t.Error("handler must not run") })
	tab.Notify(p.Pid(), 0)
	tab.Notify(p.Pid(), core.NSIG)
	tab.Notify(p.Pid(), -3)
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, p.Delivered()+p.Ignored())
}

func TestNotifyConcurrent(t *testing.T) {
	tab := NewTable()
	var procs []*Process
	for i := 0; i < 4; i++ {
		p := tab.Spawn("worker")
		p.Handle(core.SIGUSR1, func(core.SigNo) {})
		procs = append(procs, p)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tab.Notify(procs[j%len(procs)].Pid(), core.SIGUSR1)
			}
		}()
	}
	// Spawning and exiting while notifications are in flight
	extra := tab.Spawn("extra")
	tab.Exit(extra.Pid())
	wg.Wait()

	for _, p := range procs {
		require.Eventually(t, func() bool { return p.Delivered() > 0 }, time.Second, time.Millisecond)
		tab.Exit(p.Pid())
	}
}
