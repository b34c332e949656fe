package core

import (
	"github.com/kelindar/event"
)

// Event type IDs
const (
	TypeArmed uint32 = iota + 1
	TypeDisarmed
	TypeLEDChanged
)

// ArmedEvent is published after a successful arm request
type ArmedEvent struct {
	Pid Pid
	Sig SigNo
}

func (e ArmedEvent) Type() uint32 { return TypeArmed }

// DisarmedEvent is published when the timer is stopped at teardown
type DisarmedEvent struct{}

func (e DisarmedEvent) Type() uint32 { return TypeDisarmed }

// LEDChangedEvent is published after a valid LED command is applied
type LEDChangedEvent struct {
	On bool
}

func (e LEDChangedEvent) Type() uint32 { return TypeLEDChanged }

// EventBus carries process-context driver events to observers.
// It is never published to from interrupt context.
// A nil *EventBus drops everything.
type EventBus struct {
	dispatcher *event.Dispatcher
}

// NewEventBus creates a bus backed by its own dispatcher
func NewEventBus() *EventBus {
	return &EventBus{dispatcher: event.NewDispatcher()}
}

// Close stops delivery to all subscribers
func (b *EventBus) Close() error {
	if b == nil {
		return nil
	}
	return b.dispatcher.Close()
}

// OnArmed subscribes to ArmedEvent; the returned func unsubscribes
func (b *EventBus) OnArmed(h func(ArmedEvent)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// OnDisarmed subscribes to DisarmedEvent
func (b *EventBus) OnDisarmed(h func(DisarmedEvent)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// OnLEDChanged subscribes to LEDChangedEvent
func (b *EventBus) OnLEDChanged(h func(LEDChangedEvent)) func() {
	return event.Subscribe(b.dispatcher, h)
}

func (b *EventBus) publishArmed(e ArmedEvent) {
	if b != nil {
		event.Publish(b.dispatcher, e)
	}
}

func (b *EventBus) publishDisarmed() {
	if b != nil {
		event.Publish(b.dispatcher, DisarmedEvent{})
	}
}

func (b *EventBus) publishLEDChanged(e LEDChangedEvent) {
	if b != nil {
		event.Publish(b.dispatcher, e)
	}
}
