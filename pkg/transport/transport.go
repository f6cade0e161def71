package transport

import "time"

// Channel is a half-duplex byte channel to the sensor. Implementations are
// a real serial port (Serial) or a scripted fake (Mock). The protocol
// engine is the only owner of a Channel; concurrent use corrupts framing.
type Channel interface {
	// Write sends bytes to the device.
	Write(p []byte) (int, error)
	// ReadAvailable reads whatever the device has produced, waiting at most
	// timeout for the first byte and then draining the buffer.
	ReadAvailable(timeout time.Duration) ([]byte, error)
	// Clear discards any bytes currently buffered on the channel and
	// returns them for logging.
	Clear() ([]byte, error)
	Close() error
}

// Ensure both implementations satisfy Channel.
var (
	_ Channel = (*Serial)(nil)
	_ Channel = (*Mock)(nil)
)
