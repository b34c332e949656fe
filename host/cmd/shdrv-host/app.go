package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"shdrv/core"
	"shdrv/host/config"
)

// app is the state shared by every subcommand
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	events *core.EventBus
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	level, _ := cfg.Level()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	return &app{
		cfg:    cfg,
		log:    log,
		events: core.NewEventBus(),
	}, nil
}

func (a *app) Close() {
	_ = a.events.Close()
}

// serveMetrics exposes the Prometheus registry until ctx is done
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.log.Info("serving metrics", "addr", a.cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// watchEvents logs driver events; the returned func unsubscribes
func (a *app) watchEvents() func() {
	unsubs := []func(){
		a.events.OnArmed(func(e core.ArmedEvent) {
			period := time.Duration(core.TimerToUS(core.TimerPeriodTicks)) * time.Microsecond
			a.log.Info("timer armed", "pid", e.Pid, "signo", e.Sig, "period", period)
		}),
		a.events.OnDisarmed(func(core.DisarmedEvent) {
			a.log.Info("timer stopped")
		}),
		a.events.OnLEDChanged(func(e core.LEDChangedEvent) {
			a.log.Debug("led changed", "on", e.On)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// backend is an opened register block with its interrupt wiring
type backend struct {
	regs  core.RegisterBlock
	irqs  *core.IRQController
	sim   *core.SimBlock
	close func() error
}

// openBackend prepares the configured register block. The sim backend's
// counter runs at speed times real time; the mem backend's UNF poller
// runs until ctx is done.
func (a *app) openBackend(ctx context.Context, speed float64) (*backend, error) {
	irqs := core.NewIRQController()

	switch a.cfg.Backend {
	case "mem":
		return a.openMem(ctx, irqs)
	default:
		sb := core.NewSimBlock()
		sb.AttachIRQ(irqs.Line(a.cfg.IRQ))
		go runClock(ctx, sb, speed)
		return &backend{regs: sb, irqs: irqs, sim: sb, close: func() error { return nil }}, nil
	}
}

// clockStep is the real-time granularity of the simulated counter
const clockStep = 10 * time.Millisecond

// runClock advances the simulated counter until ctx is done
func runClock(ctx context.Context, sb *core.SimBlock, speed float64) {
	if speed <= 0 {
		speed = 1
	}
	ticks := uint32(float64(core.TimerFromUS(uint32(clockStep.Microseconds()))) * speed)

	ticker := time.NewTicker(clockStep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sb.Advance(ticks)
		}
	}
}

func dumpTrace(log *slog.Logger, drv *core.Driver) {
	drv.Trace().Dump(func(s string) {
		log.Debug(s)
	})
}
