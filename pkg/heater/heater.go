// Package heater regulates the rain sensor's internal heater. Normal
// operation holds the sensor a few degrees above ambient under PID
// control; persistent rain in recent history triggers a time-boxed
// full-power impulse to dry the sensor, per RainSensorHeaterAlgorithm.pdf.
package heater

import (
	"errors"
	"log"
	"math"
	"time"

	"github.com/joshwalawender/AAGonRPi/pkg/pid"
	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// Mode is the heater control mode.
type Mode string

const (
	Proportional Mode = "proportional"
	Impulse      Mode = "impulse"
)

// ErrInsufficientData means the latest sample lacks the ambient or rain
// sensor temperature, so no new power level can be computed this cycle.
var ErrInsufficientData = errors.New("insufficient data for heater adjustment")

// Config holds the heater thresholds.
type Config struct {
	LowTemp         float64
	LowDelta        float64
	HighTemp        float64
	HighDelta       float64
	MinPower        float64
	ImpulseTemp     float64
	ImpulseDuration time.Duration
	ImpulseCycle    time.Duration
}

// Controller owns the heater state machine and its PID controller. State
// lives for the process lifetime and transitions only inside Update.
type Controller struct {
	cfg Config
	pid *pid.Controller

	mode         Mode
	impulseStart time.Time
}

// New creates a controller in Proportional mode.
func New(cfg Config, p *pid.Controller) *Controller {
	return &Controller{
		cfg:  cfg,
		pid:  p,
		mode: Proportional,
	}
}

// Mode returns the current control mode.
func (c *Controller) Mode() Mode { return c.mode }

// ImpulseStart returns when the current impulse began; zero outside
// impulse mode.
func (c *Controller) ImpulseStart() time.Time { return c.impulseStart }

// Update evaluates the mode transition against recent rain-safe history
// and computes the new heater power percentage for the latest sample.
// rainHistory is the sequence of rain-safe flags from samples inside the
// impulse cycle window that carry one.
func (c *Controller) Update(last *weather.Sample, rainHistory []bool, now time.Time) (float64, error) {
	if last.AmbientTempC == nil {
		log.Printf("[Warning]   Do not have Ambient Temperature measurement.  Can not determine PWM value.")
		return 0, ErrInsufficientData
	}
	if last.RainSensorTempC == nil {
		log.Printf("[Warning]   Do not have Rain Sensor Temperature measurement.  Can not determine PWM value.")
		return 0, ErrInsufficientData
	}
	ambient := *last.AmbientTempC
	rainTemp := *last.RainSensorTempC

	if persistentRain(rainHistory) {
		if c.mode == Impulse {
			if now.Sub(c.impulseStart) > c.cfg.ImpulseDuration {
				log.Printf("  Impulse heating has been on for > %.0f seconds.  Turning off.",
					c.cfg.ImpulseDuration.Seconds())
				c.mode = Proportional
				c.impulseStart = time.Time{}
			}
		} else {
			log.Printf("  Consistent wet/rain in history.  Starting impulse heating sequence.")
			c.mode = Impulse
			c.impulseStart = now
		}
	} else {
		c.mode = Proportional
		c.impulseStart = time.Time{}
	}

	if c.mode == Impulse {
		target := ambient + c.cfg.ImpulseTemp
		if rainTemp < target {
			log.Printf("  Rain sensor temp < target.  Setting heater to 100 %%.")
			return 100, nil
		}
		power := impulseDelta(rainTemp - target)
		log.Printf("  Rain sensor temp > target.  Setting heater to %.0f %%.", power)
		return power, nil
	}

	var delta float64
	switch {
	case ambient < c.cfg.LowTemp:
		delta = c.cfg.LowDelta
	case ambient > c.cfg.HighTemp:
		delta = c.cfg.HighDelta
	default:
		frac := (ambient - c.cfg.LowTemp) / (c.cfg.HighTemp - c.cfg.LowTemp)
		delta = c.cfg.LowDelta + frac*(c.cfg.HighDelta-c.cfg.LowDelta)
	}
	target := ambient + delta
	power := math.Round(c.pid.Recalculate(rainTemp, target, now))
	log.Printf("  target=%4.1f, actual=%4.1f, new PWM=%3.0f, P=%+3.0f, I=%+3.0f (%2d), D=%+3.0f",
		target, rainTemp, power,
		c.pid.Kp*c.pid.Pval, c.pid.Ki*c.pid.Ival, c.pid.HistoryLen(), c.pid.Kd*c.pid.Dval)
	return power, nil
}

// persistentRain reports whether the history carries more than three
// rain-safe flags and none of them indicate safe.
func persistentRain(rainHistory []bool) bool {
	if len(rainHistory) <= 3 {
		return false
	}
	for _, safe := range rainHistory {
		if safe {
			return false
		}
	}
	return true
}

// impulseDelta maps how far the sensor sits above target to a signed power
// step, applied as the absolute power while in impulse mode above target.
// Bands are checked in this order with first match winning; boundary
// values that satisfy no band fall through to zero.
func impulseDelta(deltaT float64) float64 {
	const scaling = 0.5
	var step float64
	switch {
	case deltaT > 8:
		step = -40 * scaling
	case deltaT > 4:
		step = -20 * scaling
	case deltaT > 3:
		step = -10 * scaling
	case deltaT > 2:
		step = -6 * scaling
	case deltaT > 1:
		step = -4 * scaling
	case deltaT > 0.5:
		step = -2 * scaling
	case deltaT > 0.3:
		step = -1 * scaling
	case deltaT < -0.3:
		step = 1 * scaling
	case deltaT < -0.5:
		step = 2 * scaling
	case deltaT < -1:
		step = 4 * scaling
	case deltaT < -2:
		step = 6 * scaling
	case deltaT < -3:
		step = 10 * scaling
	case deltaT < -4:
		step = 20 * scaling
	case deltaT < -8:
		step = 40 * scaling
	}
	return math.Trunc(step)
}
