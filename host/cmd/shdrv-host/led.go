package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shdrv/core"
	"shdrv/host/board"
)

var ledCmd = &cobra.Command{
	Use:   "led [0|1]",
	Short: "Write the board LED",
	Long: `Writes one command byte to the LED and reads it back. With --loop the
LED alternates OFF and ON until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLED,
}

func init() {
	ledCmd.Flags().Bool("loop", false, "alternate OFF and ON")
	ledCmd.Flags().Duration("interval", time.Second, "time between writes with --loop")
}

func runLED(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	loop, _ := cmd.Flags().GetBool("loop")
	interval, _ := cmd.Flags().GetDuration("interval")
	if !loop && (len(args) != 1 || len(args[0]) != 1) {
		return fmt.Errorf("need a single character value or --loop")
	}

	b, err := board.ConnectWithConfig(a.cfg.SerialPort())
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := cmd.Context()
	led, err := b.OpenLED(ctx, 0)
	if err != nil {
		return err
	}
	defer led.Close(ctx)

	if !loop {
		return writeAndReadBack(cmd, led, args[0][0])
	}

	values := []byte{core.LEDOff, core.LEDOn}
	for i := 0; ; i++ {
		if err := writeAndReadBack(cmd, led, values[i%2]); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func writeAndReadBack(cmd *cobra.Command, led *board.LED, v byte) error {
	ctx := cmd.Context()
	name := "ON"
	if v == core.LEDOff {
		name = "OFF"
	}

	if _, err := led.Write(ctx, []byte{v}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s(write) %c\n", name, v)

	got, err := led.Read(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s(read)  %c\n", name, got)
	return nil
}
