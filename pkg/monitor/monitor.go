// Package monitor runs the periodic measurement cycle: read the sensor,
// judge the weather, persist and publish the sample, and drive the rain
// sensor heater.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/joshwalawender/AAGonRPi/pkg/alert"
	"github.com/joshwalawender/AAGonRPi/pkg/bus"
	"github.com/joshwalawender/AAGonRPi/pkg/config"
	"github.com/joshwalawender/AAGonRPi/pkg/device"
	"github.com/joshwalawender/AAGonRPi/pkg/heater"
	"github.com/joshwalawender/AAGonRPi/pkg/httpapi"
	"github.com/joshwalawender/AAGonRPi/pkg/safety"
	"github.com/joshwalawender/AAGonRPi/pkg/store"
	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// Sensor is the slice of the device surface the cycle needs: one full
// measurement pass and heater power control.
type Sensor interface {
	Acquire(now time.Time) weather.Sample
	SetPWM(percent float64) (float64, error)
}

var _ Sensor = (*device.Device)(nil)

// Monitor owns one device and the downstream consumers of its samples.
type Monitor struct {
	dev      Sensor
	st       store.Store
	htr      *heater.Controller
	pub      *bus.Publisher
	notifier *alert.Notifier
	api      *httpapi.Server

	cfgPath string
	cfg     *config.Config
}

// New assembles a monitor. Publisher, notifier and api may be nil when the
// corresponding section is disabled.
func New(cfgPath string, cfg *config.Config, dev Sensor, st store.Store,
	htr *heater.Controller, pub *bus.Publisher, notifier *alert.Notifier, api *httpapi.Server) *Monitor {
	return &Monitor{
		dev:      dev,
		st:       st,
		htr:      htr,
		pub:      pub,
		notifier: notifier,
		api:      api,
		cfgPath:  cfgPath,
		cfg:      cfg,
	}
}

// Run executes measurement cycles until the context is cancelled. The
// configuration file is re-read between cycles so threshold changes take
// effect without a restart.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		m.Cycle(ctx, time.Now())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.CaptureInterval()):
		}

		if cfg, err := config.Load(m.cfgPath); err != nil {
			log.Printf("[Warning] config reload failed: %v", err)
		} else {
			m.cfg = cfg
		}
	}
}

// Cycle performs one full measurement pass at the given time.
func (m *Monitor) Cycle(ctx context.Context, now time.Time) {
	log.Printf("#### Starting measurement cycle ####")
	sample := m.dev.Acquire(now)

	window, err := m.st.Range(now.Add(-m.cfg.SafetySettings().SafetyDelay), now)
	if err != nil {
		log.Printf("[Warning] history query failed: %v", err)
	}
	history := append(window, sample)

	verdict := safety.Decide(&sample, history, now, m.cfg.SafetySettings())
	sample.ApplyVerdict(verdict)

	if err := m.st.Insert(sample); err != nil {
		log.Printf("[Warning] failed to store sample: %v", err)
	}

	if m.pub != nil {
		if err := m.pub.Publish(ctx, sample); err != nil {
			log.Printf("[Warning] failed to publish sample: %v", err)
		}
	}
	if m.api != nil {
		m.api.Broadcast(sample)
	}
	if m.notifier != nil {
		m.notifier.Observe(verdict, now)
	}

	m.adjustHeater(&sample, now)
}

// adjustHeater recomputes the heater power from the freshly judged sample
// and the rain-safe flags inside the impulse cycle window, then writes it
// to the device.
func (m *Monitor) adjustHeater(last *weather.Sample, now time.Time) {
	log.Printf("Updating Heater PWM Value")
	cycle := m.cfg.HeaterSettings().ImpulseCycle
	window, err := m.st.Range(now.Add(-cycle), now)
	if err != nil {
		log.Printf("[Warning] rain history query failed: %v", err)
	}

	var rainHistory []bool
	for i := range window {
		if window[i].RainSafe != nil {
			rainHistory = append(rainHistory, *window[i].RainSafe)
		}
	}
	if last.RainSafe != nil {
		rainHistory = append(rainHistory, *last.RainSafe)
	}

	power, err := m.htr.Update(last, rainHistory, now)
	if err != nil {
		return
	}
	if _, err := m.dev.SetPWM(power); err != nil {
		log.Printf("[Warning] failed to set heater PWM: %v", err)
	}
}
