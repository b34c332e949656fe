//go:build tinygo

package core

import "sync/atomic"

// Plain counters stand in for the Prometheus collectors on TinyGo

type counter struct {
	n atomic.Uint64
}

func (c *counter) Inc() {
	c.n.Add(1)
}

type counterVec struct {
	on, off, invalid counter
}

func (v *counterVec) WithLabelValues(values ...string) *counter {
	switch values[0] {
	case "on":
		return &v.on
	case "off":
		return &v.off
	}
	return &v.invalid
}

var (
	timerUnderflows    = &counter{}
	timerNotifications = &counter{}
	timerArms          = &counter{}
	irqUnhandled       = &counter{}
	ledWrites          = &counterVec{}
	ledBusy            = &counter{}
)
