package serial

import (
	"io"
)

// Port is the serial line the link runs over (github.com/tarm/serial on
// native hosts). The link itself only needs an io.ReadWriteCloser, so tests
// use net.Pipe directly.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttySC1", "/dev/ttyUSB0")
	Device string

	// Baud rate of the board's console UART
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the configuration for the SH7706 board console
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
