// Package protocol implements the framed serial link between a host and
// the board: VLQ-encoded message bodies inside CRC16-checked frames.
package protocol

// Protocol constants
const (
	MessageMax = 512 // Scratch buffer size for one encoded frame batch
)

// Message IDs. Every frame body is a VLQ message ID followed by its
// VLQ-encoded arguments.
const (
	MsgStatus     uint16 = iota // board->host: errno=%i value=%u
	MsgSignal                   // board->host: signo=%i
	MsgLEDOpen                  // host->board: minor=%c
	MsgLEDClose                 // host->board: handle=%c
	MsgLEDWrite                 // host->board: handle=%c value=%*s
	MsgLEDRead                  // host->board: handle=%c
	MsgTimerOpen                // host->board: minor=%c
	MsgTimerIoctl               // host->board: handle=%c cmd=%u arg=%u
	MsgTimerClose               // host->board: handle=%c
	MsgCount
)

// SeqAsync is the sequence byte of unsolicited board->host frames.
// Requests use 1..255 and their status reply echoes it.
const SeqAsync = 0
