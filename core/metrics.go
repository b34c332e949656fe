//go:build !tinygo

package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	timerUnderflows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shdrv",
		Subsystem: "timer",
		Name:      "underflows_total",
		Help:      "TMU channel 1 underflows acknowledged by the interrupt handler",
	})

	timerNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shdrv",
		Subsystem: "timer",
		Name:      "notifications_total",
		Help:      "Notifications handed to the registered target",
	})

	timerArms = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shdrv",
		Subsystem: "timer",
		Name:      "arms_total",
		Help:      "Successful arm requests",
	})

	irqUnhandled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shdrv",
		Subsystem: "irq",
		Name:      "unhandled_total",
		Help:      "Interrupts no registered handler claimed",
	})

	ledWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shdrv",
		Subsystem: "led",
		Name:      "writes_total",
		Help:      "LED command bytes written, by decoded value",
	}, []string{"value"})

	ledBusy = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shdrv",
		Subsystem: "led",
		Name:      "open_busy_total",
		Help:      "LED opens rejected because a session was already open",
	})
)
