package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the fixed rate the AAG CloudWatcher speaks.
	DefaultBaudRate = 9600
	// drainTimeout is the per-read wait used when draining bytes that are
	// already buffered.
	drainTimeout = 50 * time.Millisecond
)

// Serial is a Channel over a physical serial port.
type Serial struct {
	port     string
	baudRate int

	mu        sync.Mutex
	conn      serial.Port
	connected bool
}

// New creates a new Serial channel for the given port. Pass baudRate 0 for
// the device default.
func New(port string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{
		port:     port,
		baudRate: baudRate,
	}
}

// Ports returns the names of available serial ports.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Connect opens the serial port.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: s.baudRate,
	}
	conn, err := serial.Open(s.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	s.conn = conn
	s.connected = true
	return nil
}

// Close closes the serial port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		if err != nil {
			return fmt.Errorf("failed to close serial port: %w", err)
		}
	}
	return nil
}

// IsConnected reports whether the port is currently open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Write sends bytes to the device.
func (s *Serial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return 0, fmt.Errorf("not connected")
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write failed: %w", err)
	}
	return n, nil
}

// ReadAvailable waits up to timeout for the first byte, then drains
// whatever else the device has buffered. A silent device yields an empty
// slice, not an error.
func (s *Serial) ReadAvailable(timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("not connected")
	}
	return s.drain(timeout)
}

// Clear discards the input buffer, returning the bytes that were waiting.
func (s *Serial) Clear() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("not connected")
	}
	return s.drain(0)
}

// drain reads until the port goes quiet. firstTimeout bounds the wait for
// the first chunk; subsequent chunks only get drainTimeout so a chatty
// device cannot block forever.
func (s *Serial) drain(firstTimeout time.Duration) ([]byte, error) {
	var out []byte
	buf := make([]byte, 256)
	timeout := firstTimeout

	for {
		if err := s.conn.SetReadTimeout(timeout); err != nil {
			return out, fmt.Errorf("failed to set read timeout: %w", err)
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			return out, fmt.Errorf("serial read failed: %w", err)
		}
		if n == 0 {
			// Timeout with nothing new; buffer is drained.
			return out, nil
		}
		timeout = drainTimeout
	}
}
