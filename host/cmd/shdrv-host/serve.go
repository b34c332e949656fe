package main

import (
	"time"

	"github.com/spf13/cobra"

	"shdrv/core"
	"shdrv/host/serial"
	"shdrv/link"
	"shdrv/proc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the drivers on a serial link",
	Long: `Brings up both drivers on the configured backend and serves the link
protocol on the serial device. The link is reopened if it drops.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Float64("speed", 1, "simulated clock rate (sim backend)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	speed, _ := cmd.Flags().GetFloat64("speed")

	be, err := a.openBackend(ctx, speed)
	if err != nil {
		return err
	}
	defer be.close()
	a.serveMetrics(ctx)
	defer a.watchEvents()()

	procs := proc.NewTable()
	drv := core.NewDriver(be.regs, be.irqs, procs, a.cfg.Driver(a.log, a.events))
	defer drv.Close()

	srv := link.NewServer(drv, procs, a.log)
	a.log.Debug("link dictionary\n" + srv.Dictionary())

	for {
		port, err := serial.Open(a.cfg.SerialPort())
		if err != nil {
			return err
		}
		if err := port.Flush(); err != nil {
			a.log.Warn("flush failed", "err", err)
		}
		a.log.Info("serving", "device", a.cfg.Serial.Device, "backend", a.cfg.Backend)

		err = srv.Serve(ctx, port)
		if ctx.Err() != nil {
			return nil
		}
		a.log.Warn("link lost, reopening", "err", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}
