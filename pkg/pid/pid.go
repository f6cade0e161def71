// Package pid implements a proportional-integral-derivative controller
// whose integral term is accumulated over a bounded time window, so windup
// is limited by construction: old error contributions simply expire.
package pid

import "time"

// errSample is one (timestamp, error) pair in the integral history.
type errSample struct {
	at  time.Time
	err float64
}

// Controller is a reusable PID controller. It is not safe for concurrent
// use; the heater controller owns exactly one and recomputes it once per
// capture cycle.
type Controller struct {
	Kp float64
	Ki float64
	Kd float64

	// MinOutput and MaxOutput clamp the computed output.
	MinOutput float64
	MaxOutput float64

	// MaxAge bounds how long an error sample contributes to the integral.
	MaxAge time.Duration

	history   []errSample
	lastTime  time.Time
	lastError float64
	started   bool

	// Last computed terms, kept for the debug log line.
	Pval         float64
	Ival         float64
	Dval         float64
	LastInterval time.Duration
}

// New creates a controller with the given gains, integral window and
// output limits.
func New(kp, ki, kd float64, maxAge time.Duration, min, max float64) *Controller {
	return &Controller{
		Kp:        kp,
		Ki:        ki,
		Kd:        kd,
		MaxAge:    maxAge,
		MinOutput: min,
		MaxOutput: max,
	}
}

// Recalculate computes a new output for the measured value against the set
// point at the given time. The caller supplies now so cycles are
// reproducible and testable.
func (c *Controller) Recalculate(actual, setPoint float64, now time.Time) float64 {
	err := setPoint - actual

	c.history = append(c.history, errSample{at: now, err: err})
	cutoff := now.Add(-c.MaxAge)
	trim := 0
	for trim < len(c.history) && c.history[trim].at.Before(cutoff) {
		trim++
	}
	c.history = c.history[trim:]

	c.Pval = err

	// Rectangular accumulation: each error weighted by the gap since the
	// preceding sample.
	c.Ival = 0
	for i := 1; i < len(c.history); i++ {
		dt := c.history[i].at.Sub(c.history[i-1].at).Seconds()
		c.Ival += c.history[i].err * dt
	}

	c.Dval = 0
	if c.started {
		elapsed := now.Sub(c.lastTime)
		c.LastInterval = elapsed
		if elapsed > 0 {
			c.Dval = (err - c.lastError) / elapsed.Seconds()
		}
	}

	c.lastTime = now
	c.lastError = err
	c.started = true

	out := c.Kp*c.Pval + c.Ki*c.Ival + c.Kd*c.Dval
	if out < c.MinOutput {
		out = c.MinOutput
	}
	if out > c.MaxOutput {
		out = c.MaxOutput
	}
	return out
}

// HistoryLen returns the number of error samples currently inside the
// integral window.
func (c *Controller) HistoryLen() int {
	return len(c.history)
}

// Reset clears the controller's history and derivative state.
func (c *Controller) Reset() {
	c.history = nil
	c.started = false
	c.Pval, c.Ival, c.Dval = 0, 0, 0
	c.LastInterval = 0
}
