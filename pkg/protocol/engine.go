package protocol

import (
	"log"
	"strings"
	"time"

	"github.com/joshwalawender/AAGonRPi/pkg/transport"
)

const (
	// DefaultDelay is the settle time after sending a command with no
	// table-specific delay.
	DefaultDelay = 200 * time.Millisecond
	// DefaultReadTimeout bounds each read; the device typically turns a
	// reply around well inside 2 s.
	DefaultReadTimeout = 2 * time.Second
	// Hibernate is the pause after a reply failed validation, before the
	// retry.
	Hibernate = 500 * time.Millisecond
	// DefaultMaxTries is the total attempt count for a validated query.
	DefaultMaxTries = 5
)

// Engine drives the request/reply protocol over a Channel it exclusively
// owns: clear, write, settle, read, frame-strip, validate, retry.
type Engine struct {
	ch          transport.Channel
	readTimeout time.Duration
	hibernate   time.Duration

	// Sleep is swapped out in tests.
	Sleep func(time.Duration)
}

// NewEngine creates an Engine over an open channel.
func NewEngine(ch transport.Channel) *Engine {
	return &Engine{
		ch:          ch,
		readTimeout: DefaultReadTimeout,
		hibernate:   Hibernate,
		Sleep:       time.Sleep,
	}
}

// Send writes a request, waits delay (or the command's table delay, or the
// default, if delay is zero), and returns whatever text came back with the
// framing trailer stripped. It validates nothing; a garbage reply is
// returned as-is for the caller to judge.
func (e *Engine) Send(request string, delay time.Duration) (string, error) {
	cmd, err := Lookup(request)
	if err != nil {
		log.Printf("[Warning] %v", err)
		return "", err
	}
	if delay <= 0 {
		delay = cmd.Delay
	}
	if delay <= 0 {
		delay = DefaultDelay
	}

	cleared, err := e.ch.Clear()
	if err != nil {
		return "", err
	}
	if len(cleared) > 0 {
		log.Printf("  Cleared stale input: %q", cleared)
	}

	if _, err := e.ch.Write([]byte(request)); err != nil {
		return "", err
	}
	e.Sleep(delay)

	raw, err := e.ch.ReadAvailable(e.readTimeout)
	if err != nil {
		return "", err
	}
	return stripFrame(string(raw)), nil
}

// Query sends a request and validates the reply against the command's
// expected pattern, retrying up to maxTries total attempts with a
// hibernation pause between them. It returns the captured fields in
// pattern order, or nil if no attempt produced a valid reply.
func (e *Engine) Query(request string, maxTries int) ([]string, error) {
	cmd, err := Lookup(request)
	if err != nil {
		log.Printf("[Warning] %v", err)
		return nil, err
	}
	if cmd.Expect == nil {
		return nil, ErrNoReplyPattern
	}
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}

	delay := cmd.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	for try := 1; try <= maxTries; try++ {
		text, err := e.Send(request, delay)
		if err != nil {
			return nil, err
		}
		if fields, ok := cmd.Expect.Match(text); ok {
			return fields, nil
		}
		if try < maxTries {
			e.Sleep(e.hibernate)
		}
	}
	log.Printf("  No valid reply to %s after %d tries", cmd.Description, maxTries)
	return nil, nil
}

// stripFrame removes the device's reply trailer: a 0x11 sentinel followed
// by twelve spaces and a '0'. Text that is not framed that way is returned
// untouched.
func stripFrame(text string) string {
	if !strings.HasPrefix(text, "!") {
		return text
	}
	for i := len(text) - 14; i >= 0; i-- {
		if text[i] != 0x11 {
			continue
		}
		padded := true
		for j := i + 1; j < i+13; j++ {
			if !isSpace(text[j]) {
				padded = false
				break
			}
		}
		if padded && text[i+13] == '0' {
			return text[:i]
		}
	}
	return text
}
