package protocol

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnExchange(t *testing.T) {
	a, b := net.Pipe()

	// b echoes every frame back with the payload's first value doubled
	echo := NewConn(b, func(c *Conn, msg Message) {
		payload := msg.Payload
		id, err1 := DecodeVLQUint(&payload)
		v, err2 := DecodeVLQUint(&payload)
		if !assert.NoError(t, errors.Join(err1, err2)) {
			return
		}
		_ = c.Send(msg.Sequence, uint16(id), func(output OutputBuffer) {
			EncodeVLQUint(output, 2*v)
		})
	})
	defer echo.Close()

	got := make(chan [2]uint32, 4)
	client := NewConn(a, func(c *Conn, msg Message) {
		payload := msg.Payload
		_, _ = DecodeVLQUint(&payload)
		v, _ := DecodeVLQUint(&payload)
		got <- [2]uint32{uint32(msg.Sequence), v}
	})

	for seq := uint8(1); seq <= 3; seq++ {
		require.NoError(t, client.Send(seq, MsgLEDRead, func(output OutputBuffer) {
			EncodeVLQUint(output, uint32(seq)*10)
		}))
	}

	for seq := uint32(1); seq <= 3; seq++ {
		select {
		case r := <-got:
			assert.Equal(t, [2]uint32{seq, seq * 20}, r)
		case <-time.After(time.Second):
			t.Fatal("no reply")
		}
	}

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Send(4, MsgLEDRead, nil), ErrConnClosed)

	// The peer sees the link go down
	select {
	case <-echo.Done():
	case <-time.After(time.Second):
		t.Fatal("peer reader did not stop")
	}
	assert.Error(t, echo.Err())
}

func TestConnTooLarge(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := NewConn(a, nil)
	defer c.Close()

	err := c.Send(1, MsgLEDWrite, func(output OutputBuffer) {
		EncodeVLQBytes(output, make([]byte, MessageLengthMax))
	})
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}
