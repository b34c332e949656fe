// Package board is the host side of the link: it opens devices on a board
// running link.Server and receives the notifications posted to the
// connection.
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"shdrv/core"
	"shdrv/host/serial"
	"shdrv/protocol"
)

// ErrNoSequence is returned when every sequence number has a request in
// flight
var ErrNoSequence = errors.New("too many requests in flight")

// SignalQueue is the depth of the Signals channel. Signals arriving while
// it is full are dropped, matching the board's own coalescing.
const SignalQueue = 16

// Board is a connection to one board
type Board struct {
	conn *protocol.Conn
	log  *slog.Logger

	// mu guards seq and pending
	mu      sync.Mutex
	seq     uint8
	pending map[uint8]chan status

	signals chan core.SigNo
}

type status struct {
	errno int32
	value uint32
}

// ConnectWithConfig opens a board on a serial port
func ConnectWithConfig(cfg *serial.Config) (*Board, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	// Drop signal frames left over from a previous session
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port: %w", err)
	}
	return New(port, nil), nil
}

// New runs the link over an already open stream
func New(port io.ReadWriteCloser, log *slog.Logger) *Board {
	if log == nil {
		log = slog.Default()
	}
	b := &Board{
		log:     log.With("component", "board"),
		pending: make(map[uint8]chan status),
		signals: make(chan core.SigNo, SignalQueue),
	}
	b.conn = protocol.NewConn(port, b.handle)
	return b
}

// Signals delivers the notification codes posted to this connection
func (b *Board) Signals() <-chan core.SigNo {
	return b.signals
}

// Done is closed when the link goes down
func (b *Board) Done() <-chan struct{} {
	return b.conn.Done()
}

// Close drops the link. The board closes any sessions still open.
func (b *Board) Close() error {
	return b.conn.Close()
}

// handle runs on the reader goroutine and must never block
func (b *Board) handle(_ *protocol.Conn, msg protocol.Message) {
	args := msg.Payload
	id, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		b.log.Warn("malformed frame", "err", err)
		return
	}

	switch uint16(id) {
	case protocol.MsgStatus:
		errno, err1 := protocol.DecodeVLQInt(&args)
		value, err2 := protocol.DecodeVLQUint(&args)
		if err := errors.Join(err1, err2); err != nil {
			b.log.Warn("malformed status", "seq", msg.Sequence, "err", err)
			return
		}
		b.mu.Lock()
		ch, ok := b.pending[msg.Sequence]
		delete(b.pending, msg.Sequence)
		b.mu.Unlock()
		if !ok {
			b.log.Warn("unexpected status", "seq", msg.Sequence)
			return
		}
		ch <- status{errno: errno, value: value}

	case protocol.MsgSignal:
		sig, err := protocol.DecodeVLQInt(&args)
		if err != nil {
			b.log.Warn("malformed signal", "err", err)
			return
		}
		select {
		case b.signals <- core.SigNo(sig):
		default:
			b.log.Debug("signal queue full", "signo", sig)
		}

	default:
		b.log.Warn("unknown message", "id", id)
	}
}

// nextSeq picks a free sequence number in 1..255 (caller holds mu)
func (b *Board) nextSeq() (uint8, bool) {
	for i := 0; i < 255; i++ {
		b.seq++
		if b.seq == protocol.SeqAsync {
			b.seq++
		}
		if _, busy := b.pending[b.seq]; !busy {
			return b.seq, true
		}
	}
	return 0, false
}

// call sends one request and waits for its status. A negative errno comes
// back as the matching core error.
func (b *Board) call(ctx context.Context, msgID uint16, args func(output protocol.OutputBuffer)) (uint32, error) {
	ch := make(chan status, 1)

	b.mu.Lock()
	seq, ok := b.nextSeq()
	if ok {
		b.pending[seq] = ch
	}
	b.mu.Unlock()
	if !ok {
		return 0, ErrNoSequence
	}

	forget := func() {
		b.mu.Lock()
		delete(b.pending, seq)
		b.mu.Unlock()
	}

	if err := b.conn.Send(seq, msgID, args); err != nil {
		forget()
		return 0, err
	}

	select {
	case st := <-ch:
		return st.value, core.ErrnoError(st.errno)
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	case <-b.conn.Done():
		forget()
		return 0, protocol.ErrConnClosed
	}
}

func handleArg(h uint8) func(output protocol.OutputBuffer) {
	return func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(h))
	}
}

// LED is an open session on the board's LED device
type LED struct {
	b      *Board
	handle uint8
}

// OpenLED opens the LED device
func (b *Board) OpenLED(ctx context.Context, minor int) (*LED, error) {
	h, err := b.call(ctx, protocol.MsgLEDOpen, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(minor))
	})
	if err != nil {
		return nil, fmt.Errorf("led_open: %w", err)
	}
	return &LED{b: b, handle: uint8(h)}, nil
}

// Write sends p as the command buffer. The board consumes one byte.
func (l *LED) Write(ctx context.Context, p []byte) (int, error) {
	n, err := l.b.call(ctx, protocol.MsgLEDWrite, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(l.handle))
		protocol.EncodeVLQBytes(output, p)
	})
	if err != nil {
		return 0, fmt.Errorf("led_write: %w", err)
	}
	return int(n), nil
}

// Set turns the LED on or off
func (l *LED) Set(ctx context.Context, on bool) error {
	v := byte(core.LEDOff)
	if on {
		v = core.LEDOn
	}
	_, err := l.Write(ctx, []byte{v})
	return err
}

// Read returns the last command byte written in this session
func (l *LED) Read(ctx context.Context) (byte, error) {
	v, err := l.b.call(ctx, protocol.MsgLEDRead, handleArg(l.handle))
	if err != nil {
		return 0, fmt.Errorf("led_read: %w", err)
	}
	return byte(v), nil
}

// Close ends the session
func (l *LED) Close(ctx context.Context) error {
	if _, err := l.b.call(ctx, protocol.MsgLEDClose, handleArg(l.handle)); err != nil {
		return fmt.Errorf("led_close: %w", err)
	}
	return nil
}

// Timer is an open session on the board's timer device
type Timer struct {
	b      *Board
	handle uint8
}

// OpenTimer opens the timer device
func (b *Board) OpenTimer(ctx context.Context, minor int) (*Timer, error) {
	h, err := b.call(ctx, protocol.MsgTimerOpen, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(minor))
	})
	if err != nil {
		return nil, fmt.Errorf("timer_open: %w", err)
	}
	return &Timer{b: b, handle: uint8(h)}, nil
}

// Ioctl issues a raw control request
func (t *Timer) Ioctl(ctx context.Context, cmd uint32, arg uint32) error {
	_, err := t.b.call(ctx, protocol.MsgTimerIoctl, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(t.handle))
		protocol.EncodeVLQUint(output, cmd)
		protocol.EncodeVLQUint(output, arg)
	})
	if err != nil {
		return fmt.Errorf("timer_ioctl %#x: %w", cmd, err)
	}
	return nil
}

// Arm makes this connection the notification target for SIGUSR1
func (t *Timer) Arm(ctx context.Context) error {
	return t.Ioctl(ctx, core.IOCTL_MYTIMER_SET, 0)
}

// ArmSignal arms with a chosen code. The board must allow caller signals.
func (t *Timer) ArmSignal(ctx context.Context, sig core.SigNo) error {
	return t.Ioctl(ctx, core.IOCTL_MYTIMER_SETSIG, uint32(sig))
}

// Close ends the session. The board's timer keeps running.
func (t *Timer) Close(ctx context.Context) error {
	if _, err := t.b.call(ctx, protocol.MsgTimerClose, handleArg(t.handle)); err != nil {
		return fmt.Errorf("timer_close: %w", err)
	}
	return nil
}
