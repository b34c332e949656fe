package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqMaxLen is the longest encoding of a 32-bit value
const vlqMaxLen = 5

// EncodeVLQInt writes v as 7-bit groups, most significant first, with the
// high bit marking continuation. The first group's bits 5 and 6 carry the
// sign, so values in [-32, 96) fit one byte: small errnos and handles stay
// single byte on the link.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [vlqMaxLen]byte
	n := 0
	for shift := 28; shift > 0; shift -= 7 {
		lim := int32(1) << (shift - 2)
		if v < -lim || v >= 3*lim {
			buf[n] = byte(v>>shift)&0x7F | 0x80
			n++
		}
	}
	buf[n] = byte(v) & 0x7F
	output.Output(buf[:n+1])
}

// EncodeVLQUint writes v with the same encoding as EncodeVLQInt
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt reads one value from the front of *data and advances past
// it. On error *data is left untouched.
func DecodeVLQInt(data *[]byte) (int32, error) {
	in := *data
	if len(in) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := in[0]
	v := uint32(c & 0x7F)
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	n := 1
	for c&0x80 != 0 {
		if n == vlqMaxLen {
			return 0, ErrInvalidVLQ
		}
		if n == len(in) {
			return 0, ErrBufferTooSmall
		}
		c = in[n]
		n++
		v = v<<7 | uint32(c&0x7F)
	}

	*data = in[n:]
	return int32(v), nil
}

// DecodeVLQUint reads a value written by EncodeVLQUint
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQBytes writes a length prefix followed by data
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes reads a length-prefixed buffer. The result aliases *data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	in := *data
	length, err := DecodeVLQUint(&in)
	if err != nil {
		return nil, err
	}
	if uint32(len(in)) < length {
		return nil, ErrBufferTooSmall
	}
	*data = in[length:]
	return in[:length], nil
}
