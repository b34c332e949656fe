package protocol

import (
	"bytes"
	"testing"
)

func encodeTestFrame(t *testing.T, seq uint8, msgID uint16, args ...uint32) []byte {
	t.Helper()
	out := NewScratchOutput()
	err := EncodeMessage(out, seq, msgID, func(output OutputBuffer) {
		for _, a := range args {
			EncodeVLQUint(output, a)
		}
	})
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	return append([]byte(nil), out.Result()...)
}

func decodeAll(d *FrameDecoder, data []byte) []Message {
	var msgs []Message
	input := NewFifoBuffer(4 * MessageMax)
	input.Write(data)
	d.Decode(input, func(msg Message) {
		msgs = append(msgs, Message{
			Sequence: msg.Sequence,
			Payload:  append([]byte(nil), msg.Payload...),
		})
	})
	return msgs
}

func TestEncodeFrameLayout(t *testing.T) {
	frame := encodeTestFrame(t, 7, MsgLEDOpen, 0)

	// [len][seq][id][minor][crc hi][crc lo][sync]
	if len(frame) != 7 {
		t.Fatalf("Expected 7 byte frame, got %d: % x", len(frame), frame)
	}
	if frame[MessagePositionLen] != 7 {
		t.Errorf("Expected length byte 7, got %d", frame[0])
	}
	if frame[MessagePositionSeq] != 7 {
		t.Errorf("Expected seq 7, got %d", frame[1])
	}
	if frame[2] != byte(MsgLEDOpen) || frame[3] != 0 {
		t.Errorf("Unexpected body % x", frame[2:4])
	}
	crc := CRC16(frame[:4])
	if frame[4] != byte(crc>>8) || frame[5] != byte(crc) {
		t.Errorf("Bad CRC % x, want %04x", frame[4:6], crc)
	}
	if frame[6] != MessageValueSync {
		t.Errorf("Expected sync byte, got %#x", frame[6])
	}
}

func TestEncodeFrameTooLarge(t *testing.T) {
	out := NewScratchOutput()
	err := EncodeFrame(out, 1, func(output OutputBuffer) {
		output.Output(make([]byte, MessageLengthMax))
	})
	if err != ErrFrameTooLarge {
		t.Errorf("Expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFrameDecoderRoundTrip(t *testing.T) {
	var stream []byte
	stream = append(stream, encodeTestFrame(t, 1, MsgTimerIoctl, 1, 0x7401, 0)...)
	stream = append(stream, encodeTestFrame(t, 2, MsgLEDRead, 3)...)

	var d FrameDecoder
	msgs := decodeAll(&d, stream)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}

	payload := msgs[0].Payload
	var got []uint32
	for len(payload) > 0 {
		v, err := DecodeVLQUint(&payload)
		if err != nil {
			t.Fatalf("DecodeVLQUint failed: %v", err)
		}
		got = append(got, v)
	}
	want := []uint32{uint32(MsgTimerIoctl), 1, 0x7401, 0}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if msgs[1].Sequence != 2 {
		t.Errorf("Expected seq 2, got %d", msgs[1].Sequence)
	}
}

func TestFrameDecoderPartial(t *testing.T) {
	frame := encodeTestFrame(t, 9, MsgLEDClose, 1)

	var d FrameDecoder
	input := NewFifoBuffer(MessageMax)
	var n int
	for i := 0; i < len(frame); i++ {
		input.Write(frame[i : i+1])
		d.Decode(input, func(Message) { n++ })
		if i < len(frame)-1 && n != 0 {
			t.Fatalf("Frame decoded early at byte %d", i)
		}
	}
	if n != 1 {
		t.Errorf("Expected 1 message, got %d", n)
	}
	if input.Available() != 0 {
		t.Errorf("Expected input consumed, %d bytes left", input.Available())
	}
}

func TestFrameDecoderResync(t *testing.T) {
	good := encodeTestFrame(t, 5, MsgLEDRead, 1)

	corrupt := append([]byte(nil), good...)
	corrupt[3] ^= 0xff // body no longer matches CRC

	var stream []byte
	stream = append(stream, 0x01, 0xff, 0x7E) // garbage with bad length
	stream = append(stream, corrupt...)
	stream = append(stream, good...)

	var d FrameDecoder
	msgs := decodeAll(&d, stream)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 good message, got %d", len(msgs))
	}
	if !bytes.Equal(msgs[0].Payload, good[2:len(good)-3]) {
		t.Errorf("Unexpected payload % x", msgs[0].Payload)
	}
	if d.Dropped() != 2 {
		t.Errorf("Expected 2 dropped frames, got %d", d.Dropped())
	}
}
