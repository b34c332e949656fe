package core

import (
	"fmt"

	"shdrv/protocol"
)

// NewLinkRegistry returns the link dictionary bound to d. Message IDs are
// fixed by the protocol package; status and signal are board->host only.
func NewLinkRegistry(d *Driver) *CommandRegistry {
	r := NewCommandRegistry()
	h := &linkCommands{drv: d}

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register(protocol.MsgStatus, "status", "errno=%i value=%u", nil))
	must(r.Register(protocol.MsgSignal, "signal", "signo=%i", nil))
	must(r.Register(protocol.MsgLEDOpen, "led_open", "minor=%c", h.ledOpen))
	must(r.Register(protocol.MsgLEDClose, "led_close", "handle=%c", h.ledClose))
	must(r.Register(protocol.MsgLEDWrite, "led_write", "handle=%c value=%*s", h.ledWrite))
	must(r.Register(protocol.MsgLEDRead, "led_read", "handle=%c", h.ledRead))
	must(r.Register(protocol.MsgTimerOpen, "timer_open", "minor=%c", h.timerOpen))
	must(r.Register(protocol.MsgTimerIoctl, "timer_ioctl", "handle=%c cmd=%u arg=%u", h.timerIoctl))
	must(r.Register(protocol.MsgTimerClose, "timer_close", "handle=%c", h.timerClose))
	return r
}

type linkCommands struct {
	drv *Driver
}

// decodeUint reads one VLQ argument. A short or malformed body is a copy
// fault, the same as a bad user pointer.
func decodeUint(args *[]byte) (uint32, error) {
	v, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCopyFault, err)
	}
	return v, nil
}

func decodeHandle(args *[]byte) (uint8, error) {
	v, err := decodeUint(args)
	return uint8(v), err
}

// led_open minor=%c -> handle
func (c *linkCommands) ledOpen(files *FileTable, args *[]byte) (uint32, error) {
	minor, err := decodeUint(args)
	if err != nil {
		return 0, err
	}
	s, err := c.drv.LED.Open(int(minor))
	if err != nil {
		return 0, err
	}
	h, err := files.AddLED(s)
	if err != nil {
		_ = s.Close()
		return 0, err
	}
	return uint32(h), nil
}

func (c *linkCommands) ledClose(files *FileTable, args *[]byte) (uint32, error) {
	h, err := decodeHandle(args)
	if err != nil {
		return 0, err
	}
	return 0, files.CloseLED(h)
}

// led_write handle=%c value=%*s -> bytes consumed
func (c *linkCommands) ledWrite(files *FileTable, args *[]byte) (uint32, error) {
	h, err := decodeHandle(args)
	if err != nil {
		return 0, err
	}
	value, err := protocol.DecodeVLQBytes(args)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCopyFault, err)
	}
	s, err := files.LED(h)
	if err != nil {
		return 0, err
	}
	n, err := s.Write(files.Context(), value)
	return uint32(n), err
}

// led_read handle=%c -> last command byte
func (c *linkCommands) ledRead(files *FileTable, args *[]byte) (uint32, error) {
	h, err := decodeHandle(args)
	if err != nil {
		return 0, err
	}
	s, err := files.LED(h)
	if err != nil {
		return 0, err
	}
	var buf [1]byte
	if _, err := s.Read(files.Context(), buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0]), nil
}

// timer_open minor=%c -> handle
func (c *linkCommands) timerOpen(files *FileTable, args *[]byte) (uint32, error) {
	minor, err := decodeUint(args)
	if err != nil {
		return 0, err
	}
	s, err := c.drv.Timer.Open(int(minor))
	if err != nil {
		return 0, err
	}
	h, err := files.AddTimer(s)
	if err != nil {
		_ = s.Close()
		return 0, err
	}
	return uint32(h), nil
}

func (c *linkCommands) timerIoctl(files *FileTable, args *[]byte) (uint32, error) {
	h, err := decodeHandle(args)
	if err != nil {
		return 0, err
	}
	cmd, err := decodeUint(args)
	if err != nil {
		return 0, err
	}
	arg, err := decodeUint(args)
	if err != nil {
		return 0, err
	}
	s, err := files.Timer(h)
	if err != nil {
		return 0, err
	}
	return 0, s.Ioctl(files.Context(), cmd, arg)
}

func (c *linkCommands) timerClose(files *FileTable, args *[]byte) (uint32, error) {
	h, err := decodeHandle(args)
	if err != nil {
		return 0, err
	}
	return 0, files.CloseTimer(h)
}
