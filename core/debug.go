package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures a driver event for post-mortem analysis
type TraceEvent struct {
	EventType uint8  // Event type code
	Count     uint32 // TCNT1 at the time of the event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtArm       = 1 // Timer armed (pid, sig)
	EvtStop      = 2 // Timer stopped
	EvtUnderflow = 3 // UNF acknowledged (TCR before clear)
	EvtNotify    = 4 // Notification delivered (pid, sig)
	EvtStale     = 5 // UNF acknowledged while stopped, nothing delivered
)

const (
	TraceRingSize = 32 // Keep last 32 events
)

// Trace is a fixed-size ring of driver events. Record never allocates and
// is safe from interrupt context.
type Trace struct {
	ring [TraceRingSize]TraceEvent
	head uint8
}

// Record captures one event in the ring
func (t *Trace) Record(eventType uint8, count, value1, value2 uint32) {
	state := disableInterrupts()
	t.ring[t.head] = TraceEvent{
		EventType: eventType,
		Count:     count,
		Value1:    value1,
		Value2:    value2,
	}
	t.head = (t.head + 1) % TraceRingSize
	restoreInterrupts(state)
}

// Events returns the recorded events from oldest to newest
func (t *Trace) Events() []TraceEvent {
	state := disableInterrupts()
	ring := t.ring
	start := t.head
	restoreInterrupts(state)

	events := make([]TraceEvent, 0, TraceRingSize)
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := ring[(start+i)%TraceRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// Dump writes the ring, oldest first
func (t *Trace) Dump(w DebugWriter) {
	if w == nil {
		return
	}
	w("[TRACE] === Trace Ring Dump ===")
	for _, evt := range t.Events() {
		var name string
		switch evt.EventType {
		case EvtArm:
			name = "ARM"
		case EvtStop:
			name = "STOP"
		case EvtUnderflow:
			name = "UNDERFLOW"
		case EvtNotify:
			name = "NOTIFY"
		case EvtStale:
			name = "STALE_UNF"
		default:
			name = "UNKNOWN"
		}
		w("[TRACE] " + name +
			" tcnt=" + utoa(evt.Count) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	w("[TRACE] === End Dump ===")
}

// Clear empties the ring
func (t *Trace) Clear() {
	state := disableInterrupts()
	t.ring = [TraceRingSize]TraceEvent{}
	t.head = 0
	restoreInterrupts(state)
}
