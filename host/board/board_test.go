package board

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shdrv/core"
	"shdrv/link"
	"shdrv/proc"
)

type testBoard struct {
	sim   *core.SimBlock
	drv   *core.Driver
	procs *proc.Table
	srv   *link.Server
}

// attach opens one more link to the board
func (tb *testBoard) attach(t *testing.T) *Board {
	t.Helper()
	boardSide, hostSide := net.Pipe()
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = tb.srv.Serve(context.Background(), boardSide)
	}()

	b := New(hostSide, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		_ = b.Close()
		<-served
	})
	return b
}

// connect serves a simulated board over a pipe and returns a client for it
func connect(t *testing.T, cfg core.Config) (*Board, *testBoard) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Logger = log

	tb := &testBoard{sim: core.NewSimBlock(), procs: proc.NewTable()}
	irqs := core.NewIRQController()
	tb.sim.AttachIRQ(irqs.Line(core.TimerIRQ))
	tb.drv = core.NewDriver(tb.sim, irqs, tb.procs, cfg)
	tb.srv = link.NewServer(tb.drv, tb.procs, log)
	t.Cleanup(func() { _ = tb.drv.Close() })

	return tb.attach(t), tb
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLEDOverLink(t *testing.T) {
	b, tb := connect(t, core.Config{})
	ctx := testContext(t)

	led, err := b.OpenLED(ctx, 0)
	require.NoError(t, err)

	_, err = b.OpenLED(ctx, 0)
	assert.ErrorIs(t, err, core.ErrBusy)
	_, err = b.OpenLED(ctx, 1)
	assert.ErrorIs(t, err, core.ErrNoSuchDevice)

	require.NoError(t, led.Set(ctx, true))
	assert.True(t, tb.drv.LED.Lit())
	v, err := led.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(core.LEDOn), v)

	// Invalid value: accepted, LED untouched, but read back verbatim
	n, err := led.Write(ctx, []byte("7"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, tb.drv.LED.Lit())
	v, err = led.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte('7'), v)

	_, err = led.Write(ctx, nil)
	assert.ErrorIs(t, err, core.ErrCopyFault)

	require.NoError(t, led.Close(ctx))
	_, err = led.Read(ctx)
	assert.ErrorIs(t, err, core.ErrSessionClosed)

	again, err := b.OpenLED(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

// The timer_test scenario: arm, then toggle the LED on every notification
func TestTimerTogglesLED(t *testing.T) {
	b, tb := connect(t, core.Config{})
	ctx := testContext(t)

	// Start from a known dark LED
	led, err := b.OpenLED(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, led.Set(ctx, false))
	v, err := led.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(core.LEDOff), v)
	require.NoError(t, led.Close(ctx))

	tmr, err := b.OpenTimer(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, tmr.Arm(ctx))
	assert.True(t, tb.drv.Timer.Running())

	on := false
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, tb.sim.Advance(core.TimerPeriodTicks+1))

		select {
		case sig := <-b.Signals():
			assert.Equal(t, core.SIGUSR1, sig)
		case <-ctx.Done():
			t.Fatal("no signal")
		}

		// What the SIGUSR1 handler does
		on = !on
		want := byte(core.LEDOff)
		if on {
			want = core.LEDOn
		}
		led, err := b.OpenLED(ctx, 0)
		require.NoError(t, err)
		n, err := led.Write(ctx, []byte{want})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		got, err := led.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		require.NoError(t, led.Close(ctx))
		assert.Equal(t, on, tb.drv.LED.Lit())

		// One underflow, one signal
		select {
		case sig := <-b.Signals():
			t.Fatalf("extra signal %d for a single underflow", sig)
		case <-time.After(20 * time.Millisecond):
		}
	}

	// Closing the session leaves the timer running
	require.NoError(t, tmr.Close(ctx))
	assert.True(t, tb.drv.Timer.Running())
	assert.ErrorIs(t, tmr.Arm(ctx), core.ErrSessionClosed)
}

func TestTimerIoctlErrors(t *testing.T) {
	b, _ := connect(t, core.Config{})
	ctx := testContext(t)

	tmr, err := b.OpenTimer(ctx, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, tmr.Ioctl(ctx, core.IOC(core.IOC_NONE, 'q', 1, 0), 0), core.ErrInvalidRequest)
	assert.ErrorIs(t, tmr.Ioctl(ctx, core.IOC(core.IOC_NONE, 't', 9, 0), 0), core.ErrOutOfRange)
	assert.ErrorIs(t, tmr.ArmSignal(ctx, core.SIGUSR2), core.ErrOutOfRange)

	_, err = b.OpenTimer(ctx, 4)
	assert.ErrorIs(t, err, core.ErrNoSuchDevice)
}

func TestArmSignal(t *testing.T) {
	b, tb := connect(t, core.Config{CallerSignal: true})
	ctx := testContext(t)

	tmr, err := b.OpenTimer(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, tmr.ArmSignal(ctx, core.SIGUSR2))

	tb.sim.Advance(core.TimerPeriodTicks + 1)
	select {
	case sig := <-b.Signals():
		assert.Equal(t, core.SIGUSR2, sig)
	case <-ctx.Done():
		t.Fatal("no signal")
	}
}

func TestRearmFromSecondConnection(t *testing.T) {
	first, tb := connect(t, core.Config{})
	ctx := testContext(t)

	tmr, err := first.OpenTimer(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, tmr.Arm(ctx))
	pid := tb.drv.Timer.Target().Pid

	// A second link to the same driver
	second := tb.attach(t)
	tmr2, err := second.OpenTimer(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, tmr2.Arm(ctx))
	assert.NotEqual(t, pid, tb.drv.Timer.Target().Pid, "the last arm wins")

	tb.sim.Advance(core.TimerPeriodTicks + 1)
	select {
	case sig := <-second.Signals():
		assert.Equal(t, core.SIGUSR1, sig)
	case <-ctx.Done():
		t.Fatal("no signal on second link")
	}
	select {
	case sig := <-first.Signals():
		t.Fatalf("first link still notified: %d", sig)
	case <-time.After(20 * time.Millisecond):
	}
}
