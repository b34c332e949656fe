package protocol

import (
	"errors"
	"io"
	"sync"
)

// MessageHandler receives decoded frames on the connection's reader
// goroutine. The payload is only valid during the call.
type MessageHandler func(c *Conn, msg Message)

// Conn is a full-duplex framed link over a serial port or pipe.
// A background goroutine decodes incoming frames and passes them to the
// handler; Send may be called from any goroutine.
type Conn struct {
	port    io.ReadWriteCloser
	handler MessageHandler

	// writeMutex guards output and port writes
	writeMutex sync.Mutex
	output     *ScratchOutput

	closeOnce sync.Once
	doneChan  chan struct{}
	errMu     sync.Mutex
	err       error
}

// ErrConnClosed is returned by Send after the link has gone down
var ErrConnClosed = errors.New("link closed")

// NewConn wraps port and starts the reader
func NewConn(port io.ReadWriteCloser, handler MessageHandler) *Conn {
	c := &Conn{
		port:     port,
		handler:  handler,
		output:   NewScratchOutput(),
		doneChan: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send encodes one message and writes it to the port
func (c *Conn) Send(seq uint8, msgID uint16, args func(output OutputBuffer)) error {
	select {
	case <-c.doneChan:
		return ErrConnClosed
	default:
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	c.output.Reset()
	if err := EncodeMessage(c.output, seq, msgID, args); err != nil {
		return err
	}
	if _, err := c.port.Write(c.output.Result()); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// Done is closed when the reader stops
func (c *Conn) Done() <-chan struct{} {
	return c.doneChan
}

// Err returns the error that stopped the reader, if any
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the port and waits for the reader to exit
func (c *Conn) Close() error {
	err := c.port.Close()
	c.fail(ErrConnClosed)
	<-c.doneChan
	return err
}

func (c *Conn) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

func (c *Conn) readLoop() {
	defer c.closeOnce.Do(func() { close(c.doneChan) })

	var decoder FrameDecoder
	input := NewFifoBuffer(4 * MessageMax)
	buf := make([]byte, MessageMax/2)

	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for len(chunk) > 0 {
				w := input.Write(chunk)
				chunk = chunk[w:]
				decoder.Decode(input, func(msg Message) {
					if c.handler != nil {
						c.handler(c, msg)
					}
				})
				if w == 0 && len(chunk) > 0 {
					// Buffer full of garbage with no frame boundary
					input.Reset()
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.fail(err)
			} else {
				c.fail(ErrConnClosed)
			}
			return
		}
	}
}
