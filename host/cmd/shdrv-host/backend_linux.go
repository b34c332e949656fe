//go:build linux

package main

import (
	"context"
	"fmt"

	"shdrv/core"
)

func (a *app) openMem(ctx context.Context, irqs *core.IRQController) (*backend, error) {
	mb, err := core.OpenMemBlock(a.cfg.MemDevice)
	if err != nil {
		return nil, fmt.Errorf("mem backend: %w", err)
	}
	interval, _ := a.cfg.Poll()
	poller := core.NewPoller(mb, irqs.Line(a.cfg.IRQ), interval)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = poller.Run(ctx)
	}()

	// The mapping must outlive the poller
	closeFn := func() error {
		cancel()
		<-done
		return mb.Close()
	}
	return &backend{regs: mb, irqs: irqs, close: closeFn}, nil
}
