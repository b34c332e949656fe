package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shdrv/core"
	"shdrv/host/board"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Arm the board timer and toggle the LED on each notification",
	Args:  cobra.NoArgs,
	RunE:  runTimer,
}

func init() {
	timerCmd.Flags().Int("signal", 0, "arm with this signal number (board must allow caller signals)")
	timerCmd.Flags().Int("count", 0, "stop after this many notifications (0 runs until interrupted)")
}

func runTimer(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sig, _ := cmd.Flags().GetInt("signal")
	count, _ := cmd.Flags().GetInt("count")

	b, err := board.ConnectWithConfig(a.cfg.SerialPort())
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := cmd.Context()
	tmr, err := b.OpenTimer(ctx, 0)
	if err != nil {
		return err
	}
	defer tmr.Close(ctx)

	want := core.SIGUSR1
	if sig != 0 {
		want = core.SigNo(sig)
		err = tmr.ArmSignal(ctx, want)
	} else {
		err = tmr.Arm(ctx)
	}
	if err != nil {
		return err
	}
	a.log.Info("armed", "signo", want)

	on := false
	for n := 0; count == 0 || n < count; {
		select {
		case <-ctx.Done():
			return nil
		case <-b.Done():
			return errors.New("link closed")
		case got := <-b.Signals():
			if got != want {
				a.log.Debug("ignoring signal", "signo", got)
				continue
			}
			on = !on
			if err := toggleRemote(ctx, b, on); err != nil {
				return err
			}
			if on {
				fmt.Fprintln(cmd.OutOrStdout(), "LED ON.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "LED OFF.")
			}
			n++
		}
	}
	return nil
}

// toggleRemote opens the LED for a single write
func toggleRemote(ctx context.Context, b *board.Board, on bool) error {
	led, err := b.OpenLED(ctx, 0)
	if err != nil {
		return err
	}
	return errors.Join(led.Set(ctx, on), led.Close(ctx))
}
