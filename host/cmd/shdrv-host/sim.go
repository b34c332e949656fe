package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shdrv/core"
	"shdrv/proc"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Toggle the LED from timer notifications on a simulated board",
	Long: `Runs both drivers on a simulated register block in this process.
A process arms the timer and, on every SIGUSR1, opens the LED, flips it
and closes it again.`,
	Args: cobra.NoArgs,
	RunE: runSim,
}

func init() {
	simCmd.Flags().Float64("speed", 1, "simulated clock rate relative to real time")
	simCmd.Flags().Int("count", 0, "stop after this many notifications (0 runs until interrupted)")
	simCmd.Flags().Bool("host-signals", false, "deliver notifications to this process as real SIGUSR1")
}

func runSim(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	speed, _ := cmd.Flags().GetFloat64("speed")
	count, _ := cmd.Flags().GetInt("count")
	hostSignals, _ := cmd.Flags().GetBool("host-signals")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a.cfg.Backend = "sim"
	be, err := a.openBackend(ctx, speed)
	if err != nil {
		return err
	}
	defer be.close()
	a.serveMetrics(ctx)
	defer a.watchEvents()()

	var drv *core.Driver
	ticks := make(chan struct{}, 1)
	on := false
	var pctx context.Context
	toggle := func() {
		on = !on
		if err := toggleLocal(pctx, drv.LED, on); err != nil {
			a.log.Warn("led update failed", "err", err)
			return
		}
		if on {
			fmt.Println("LED ON.")
		} else {
			fmt.Println("LED OFF.")
		}
		select {
		case ticks <- struct{}{}:
		default:
		}
	}

	var (
		notifier core.Notifier
		pid      core.Pid
	)
	if hostSignals {
		var stop func()
		notifier, pid, stop, err = hostProcess(toggle)
		if err != nil {
			return err
		}
		defer stop()
	} else {
		procs := proc.NewTable()
		p := procs.Spawn("timer_test")
		defer procs.Exit(p.Pid())
		p.Handle(core.SIGUSR1, func(core.SigNo) { toggle() })
		notifier, pid = procs, p.Pid()
	}
	pctx = core.WithPid(ctx, pid)

	drv = core.NewDriver(be.regs, be.irqs, notifier, a.cfg.Driver(a.log, a.events))
	defer func() {
		_ = drv.Close()
		dumpTrace(a.log, drv)
	}()

	tmr, err := drv.Timer.Open(0)
	if err != nil {
		return err
	}
	defer tmr.Close()

	if err := tmr.Ioctl(pctx, core.IOCTL_MYTIMER_SET, 0); err != nil {
		return err
	}

	for n := 0; count == 0 || n < count; {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			n++
		}
	}
	return nil
}

// toggleLocal opens the LED for a single write, as a signal handler would
func toggleLocal(ctx context.Context, dev *core.LEDDevice, on bool) error {
	s, err := dev.Open(0)
	if err != nil {
		return err
	}
	v := byte(core.LEDOff)
	if on {
		v = core.LEDOn
	}
	_, werr := s.Write(ctx, []byte{v})
	return errors.Join(werr, s.Close())
}
