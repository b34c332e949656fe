package protocol

// CRC16 returns the frame checksum, CRC-16/MCRF4XX: reflected 0x1021
// polynomial, initial value 0xFFFF, no final xor. Bytewise, no table.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		x := b ^ byte(crc)
		x ^= x << 4
		crc = (uint16(x)<<8 | crc>>8) ^ uint16(x>>4) ^ uint16(x)<<3
	}
	return crc
}
