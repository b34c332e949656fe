package protocol

import "errors"

// Frame layout: [len][seq][body...][crc hi][crc lo][sync]
// len counts the whole frame; the CRC covers len, seq and body.
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
)

// ErrFrameTooLarge is returned when a body does not fit in one frame
var ErrFrameTooLarge = errors.New("frame too large")

// Message is one decoded frame
type Message struct {
	Sequence uint8
	Payload  []byte // Frame body without header/trailer
}

// EncodeFrame appends one frame carrying the body written by frameData
func EncodeFrame(output OutputBuffer, seq uint8, frameData func(output OutputBuffer)) error {
	cursor := output.CurPosition()

	// Header with length placeholder
	output.Output([]byte{0, seq})

	frameData(output)

	// Update length field
	length := len(output.DataSince(cursor)) + MessageTrailerSize
	if length > MessageLengthMax {
		return ErrFrameTooLarge
	}
	output.Update(cursor, uint8(length))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
	return nil
}

// EncodeMessage appends a frame holding msgID followed by VLQ arguments
func EncodeMessage(output OutputBuffer, seq uint8, msgID uint16, args func(output OutputBuffer)) error {
	return EncodeFrame(output, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(msgID))
		if args != nil {
			args(output)
		}
	})
}

// FrameDecoder splits a byte stream into frames. After a bad length,
// trailer or CRC it drops bytes until the next sync byte.
type FrameDecoder struct {
	desynchronized bool
	dropped        int
}

// Dropped returns how many frames were discarded as corrupt
func (d *FrameDecoder) Dropped() int {
	return d.dropped
}

// Decode consumes every complete frame in input, calling handle for each,
// and leaves a trailing partial frame in place. The payload passed to
// handle is only valid during the call.
func (d *FrameDecoder) Decode(input InputBuffer, handle func(Message)) {
	data := input.Data()

	for len(data) > 0 {
		if d.desynchronized {
			// Look for sync byte to resynchronize
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.desynchronized = false
			continue
		}

		// Skip leading sync bytes
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.desync()
			continue
		}

		// Wait for full message
		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		handle(Message{
			Sequence: data[MessagePositionSeq],
			Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
		})
		data = data[msgLen:]
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (d *FrameDecoder) desync() {
	d.desynchronized = true
	d.dropped++
}
