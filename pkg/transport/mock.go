package transport

import (
	"sync"
	"time"
)

// Mock is a scripted Channel for tests and for running the daemon without
// hardware. Each Write consumes the next queued reply for that exact
// request; unscripted requests fall back to a catch-all reply, then to a
// handler function, then to silence.
type Mock struct {
	mu      sync.Mutex
	queues  map[string][]string
	always  map[string]string
	handler func(request string) (reply string, ok bool)
	writes  []string
	pending []byte
	cleared int
}

// NewMock creates an empty scripted channel.
func NewMock() *Mock {
	return &Mock{
		queues: make(map[string][]string),
		always: make(map[string]string),
	}
}

// Respond queues replies for a request; each matching Write consumes one.
func (m *Mock) Respond(request string, replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[request] = append(m.queues[request], replies...)
}

// RespondAlways sets a reply used whenever the queue for request is empty.
func (m *Mock) RespondAlways(request, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.always[request] = reply
}

// Handle installs a fallback for requests with no scripted reply, e.g. to
// echo parametrized PWM commands.
func (m *Mock) Handle(fn func(request string) (reply string, ok bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Writes returns every request written so far, in order.
func (m *Mock) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

// Cleared returns how many times buffered bytes were discarded.
func (m *Mock) Cleared() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request := string(p)
	m.writes = append(m.writes, request)

	if queue := m.queues[request]; len(queue) > 0 {
		m.pending = []byte(queue[0])
		m.queues[request] = queue[1:]
		return len(p), nil
	}
	if reply, ok := m.always[request]; ok {
		m.pending = []byte(reply)
		return len(p), nil
	}
	if m.handler != nil {
		if reply, ok := m.handler(request); ok {
			m.pending = []byte(reply)
			return len(p), nil
		}
	}
	m.pending = nil
	return len(p), nil
}

func (m *Mock) ReadAvailable(timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	m.pending = nil
	return out, nil
}

func (m *Mock) Clear() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	if len(out) > 0 {
		m.cleared++
	}
	m.pending = nil
	return out, nil
}

func (m *Mock) Close() error { return nil }
