package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLED() (*LEDDevice, *SimBlock) {
	sim := NewSimBlock()
	return NewLEDDevice(sim, quietLogger(), nil), sim
}

func TestLEDOpenExclusive(t *testing.T) {
	dev, _ := newTestLED()

	s1, err := dev.Open(0)
	require.NoError(t, err)

	_, err = dev.Open(0)
	require.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, dev.Sessions())

	require.NoError(t, s1.Close())
	assert.Equal(t, 0, dev.Sessions())

	s2, err := dev.Open(0)
	require.NoError(t, err, "reopen after close")
	require.NoError(t, s2.Close())
}

func TestLEDOpenNoSuchDevice(t *testing.T) {
	dev, _ := newTestLED()

	for _, minor := range []int{-1, 1, 7} {
		_, err := dev.Open(minor)
		assert.ErrorIs(t, err, ErrNoSuchDevice, "minor %d", minor)
	}
	// A rejected minor must not leak an open count
	assert.Equal(t, 0, dev.Sessions())

	s, err := dev.Open(0)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestLEDWrite(t *testing.T) {
	dev, sim := newTestLED()
	ctx := context.Background()

	// Neighbouring port bits are preserved
	sim.Write8(RegSCPDR, 0x81)

	s, err := dev.Open(0)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Write(ctx, []byte{LEDOn})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, dev.Lit())
	assert.Equal(t, uint8(0x91), sim.Read8(RegSCPDR))

	// Only the first byte is consumed
	n, err = s.Write(ctx, []byte{LEDOff, LEDOn, LEDOn})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, dev.Lit())
	assert.Equal(t, uint8(0x81), sim.Read8(RegSCPDR))
}

func TestLEDWriteInvalidValue(t *testing.T) {
	dev, sim := newTestLED()
	ctx := context.Background()

	s, err := dev.Open(0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write(ctx, []byte{LEDOn})
	require.NoError(t, err)

	for _, v := range []byte{'2', 'x', 0, 0xff} {
		before := sim.Read8(RegSCPDR)
		n, err := s.Write(ctx, []byte{v})
		require.NoError(t, err, "invalid bytes are accepted")
		assert.Equal(t, 1, n)
		assert.Equal(t, before, sim.Read8(RegSCPDR), "value %q must not touch the port", v)
	}
	assert.True(t, dev.Lit())
}

func TestLEDReadReturnsLastWritten(t *testing.T) {
	dev, _ := newTestLED()
	ctx := context.Background()

	s, err := dev.Open(0)
	require.NoError(t, err)
	defer s.Close()

	buf := []byte{'9'}
	n, err := s.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0), buf[0], "fresh session reads 0")

	for _, v := range []byte{LEDOn, LEDOff, 'z'} {
		_, err := s.Write(ctx, []byte{v})
		require.NoError(t, err)

		buf[0] = '9'
		_, err = s.Read(ctx, buf)
		require.NoError(t, err)
		assert.Equal(t, v, buf[0])
	}
}

func TestLEDReadDoesNotSamplePin(t *testing.T) {
	dev, sim := newTestLED()
	ctx := context.Background()

	s, err := dev.Open(0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write(ctx, []byte{LEDOff})
	require.NoError(t, err)
	sim.Write8(RegSCPDR, SCPDR_LED)

	buf := make([]byte, 1)
	_, err = s.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, byte(LEDOff), buf[0])
}

func TestLEDCopyFault(t *testing.T) {
	dev, _ := newTestLED()
	ctx := context.Background()

	s, err := dev.Open(0)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Write(ctx, nil)
	assert.ErrorIs(t, err, ErrCopyFault)
	assert.Zero(t, n)

	n, err = s.Read(ctx, []byte{})
	assert.ErrorIs(t, err, ErrCopyFault)
	assert.Zero(t, n)
}

func TestLEDSessionClosed(t *testing.T) {
	dev, _ := newTestLED()
	ctx := context.Background()

	s, err := dev.Open(0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Write(ctx, []byte{LEDOn})
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Read(ctx, make([]byte, 1))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.Close(), ErrSessionClosed)
	assert.Equal(t, 0, dev.Sessions(), "double close must not underflow the count")
}

func TestLEDInterruptedWait(t *testing.T) {
	dev, _ := newTestLED()

	s, err := dev.Open(0)
	require.NoError(t, err)
	defer s.Close()

	// Hold the semaphore as an in-flight operation would
	require.NoError(t, dev.sem.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Write(ctx, []byte{LEDOn})
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.False(t, dev.Lit())

	dev.sem.Release(1)
	_, err = s.Write(context.Background(), []byte{LEDOn})
	require.NoError(t, err)
}

func TestLEDConcurrentWrites(t *testing.T) {
	dev, _ := newTestLED()
	ctx := context.Background()

	s, err := dev.Open(0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			v := byte(LEDOff)
			if on {
				v = LEDOn
			}
			for j := 0; j < 100; j++ {
				_, err := s.Write(ctx, []byte{v})
				assert.NoError(t, err)
				buf := make([]byte, 1)
				_, err = s.Read(ctx, buf)
				assert.NoError(t, err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	// The command buffer always agrees with the pin after a write
	buf := make([]byte, 1)
	_, err = s.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, buf[0] == LEDOn, dev.Lit())
	require.NoError(t, s.Close())
}
