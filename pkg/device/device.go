// Package device models one AAG CloudWatcher unit: it owns the protocol
// engine, performs the vendor-recommended repeated reads with median
// reduction, and exposes each physical quantity in meaningful units.
package device

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joshwalawender/AAGonRPi/pkg/protocol"
	"github.com/joshwalawender/AAGonRPi/pkg/transport"
	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// Repeat counts per quantity, per the vendor's operational recommendations.
const (
	skyTempRepeats     = 9
	ambientTempRepeats = 5
	valuesRepeats      = 5
	rainFreqRepeats    = 5
	windSpeedRepeats   = 3
	switchMaxTries     = 3

	pwmSetMaxTries = 15
	pwmTolerance   = 5.0 // percentage points
	pwmRetryPause  = 2 * time.Second
)

// ErrInsufficientSamples means fewer than n-1 of n repeated reads produced
// a usable value, so the quantity is absent this cycle.
var ErrInsufficientSamples = errors.New("insufficient valid samples")

// Switch reply literals. The device answers the !F status query with one
// of these instead of a tagged numeric field.
const (
	switchOpenReply   = "!Y            1!"
	switchClosedReply = "!X            1!"
)

// Device is one physical CloudWatcher unit behind a Channel.
type Device struct {
	eng *protocol.Engine

	Name            string
	FirmwareVersion string
	SerialNumber    string
}

// Open identifies the device on the given channel. Identification failure
// is fatal: a unit that cannot report its name, firmware and serial number
// is not functional enough to control.
func Open(ch transport.Channel) (*Device, error) {
	d := &Device{eng: newEngine(ch)}

	name, err := d.identify(protocol.ReqName, "device name")
	if err != nil {
		return nil, err
	}
	d.Name = name
	log.Printf("  Device Name is %q", d.Name)

	fw, err := d.identify(protocol.ReqFirmware, "firmware version")
	if err != nil {
		return nil, err
	}
	d.FirmwareVersion = fw
	log.Printf("  Firmware Version = %s", d.FirmwareVersion)

	serial, err := d.identify(protocol.ReqSerialNumber, "serial number")
	if err != nil {
		return nil, err
	}
	d.SerialNumber = serial
	log.Printf("  Serial Number: %s", d.SerialNumber)

	return d, nil
}

func (d *Device) identify(request, what string) (string, error) {
	fields, err := d.eng.Query(request, protocol.DefaultMaxTries)
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", what, err)
	}
	if fields == nil {
		return "", fmt.Errorf("failed to get %s: no valid reply", what)
	}
	return strings.TrimSpace(fields[0]), nil
}

// aggregate repeats a validated query n times, converts each success, and
// reduces via median. Conversion failures are treated the same as failed
// reads: at most one of n attempts may be lost.
func (d *Device) aggregate(request string, n int, conv func(fields []string) (float64, error)) (float64, error) {
	var values []float64
	for i := 0; i < n; i++ {
		fields, err := d.eng.Query(request, protocol.DefaultMaxTries)
		if err != nil || fields == nil {
			continue
		}
		v, err := conv(fields)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	if len(values) < n-1 {
		return 0, ErrInsufficientSamples
	}
	return weather.Median(values), nil
}

// SkyTemperature reads the infrared sky temperature in Celsius.
func (d *Device) SkyTemperature() (float64, error) {
	return d.aggregate(protocol.ReqSkyTemp, skyTempRepeats, func(fields []string) (float64, error) {
		return weather.SkyTempC(fields[0])
	})
}

// AmbientTemperature reads the ambient temperature in Celsius.
func (d *Device) AmbientTemperature() (float64, error) {
	return d.aggregate(protocol.ReqAmbientTemp, ambientTempRepeats, func(fields []string) (float64, error) {
		return weather.AmbientTempC(fields[0])
	})
}

// Values reads the !C block: internal zener voltage, LDR resistance and
// rain sensor temperature. Each quantity is aggregated independently; a
// nil return means that quantity failed its minimum-valid-count policy.
// The conversions are attempted in reply order, and a failure stops the
// conversions for that attempt, so a bad LDR field also discards the rain
// sensor reading from the same reply.
func (d *Device) Values() (internalVoltage, ldrResistance, rainSensorTemp *float64) {
	var voltages, resistances, temps []float64

	for i := 0; i < valuesRepeats; i++ {
		fields, err := d.eng.Query(protocol.ReqValues, protocol.DefaultMaxTries)
		if err != nil || fields == nil {
			continue
		}
		v, err := weather.InternalVoltageV(fields[0])
		if err != nil {
			continue
		}
		voltages = append(voltages, v)

		r, err := weather.LDRResistanceKOhm(fields[1])
		if err != nil {
			continue
		}
		resistances = append(resistances, r)

		t, err := weather.RainSensorTempC(fields[2])
		if err != nil {
			continue
		}
		temps = append(temps, t)
	}

	if len(voltages) >= valuesRepeats-1 {
		internalVoltage = weather.Float(weather.Median(voltages))
	} else {
		log.Printf("  Failed to read Internal Voltage")
	}
	if len(resistances) >= valuesRepeats-1 {
		ldrResistance = weather.Float(weather.Median(resistances))
	} else {
		log.Printf("  Failed to read LDR Resistance")
	}
	if len(temps) >= valuesRepeats-1 {
		rainSensorTemp = weather.Float(weather.Median(temps))
	} else {
		log.Printf("  Failed to read Rain Sensor Temp")
	}
	return internalVoltage, ldrResistance, rainSensorTemp
}

// RainFrequency reads the rain frequency counter. Lower values mean a
// wetter sensor.
func (d *Device) RainFrequency() (float64, error) {
	return d.aggregate(protocol.ReqRainFrequency, rainFreqRepeats, func(fields []string) (float64, error) {
		return weather.RainFrequency(fields[0])
	})
}

// PWM reads the heater duty cycle as a percentage.
func (d *Device) PWM() (float64, error) {
	fields, err := d.eng.Query(protocol.ReqPWM, protocol.DefaultMaxTries)
	if err != nil {
		return 0, err
	}
	if fields == nil {
		return 0, ErrInsufficientSamples
	}
	return weather.PWMPercent(fields[0])
}

// SetPWM sets the heater power percentage, clamped to [0, 100], and
// verifies the readback. A readback more than 5 points off is retried
// after a 2 s pause; after 15 tries the last reported value is accepted
// with a warning rather than an error.
func (d *Device) SetPWM(percent float64) (float64, error) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	reported := 0.0
	haveReport := false
	for try := 1; try <= pwmSetMaxTries; try++ {
		log.Printf("Setting PWM value to %.1f %%", percent)
		request := protocol.SetPWMRequest(weather.PWMDigital(percent))
		fields, err := d.eng.Query(request, protocol.DefaultMaxTries)
		if err != nil {
			return 0, err
		}
		if fields == nil {
			continue
		}
		v, err := weather.PWMPercent(fields[0])
		if err != nil {
			continue
		}
		reported = v
		haveReport = true
		if abs(reported-percent) <= pwmTolerance {
			return reported, nil
		}
		log.Printf("[Warning]   Failed to set PWM value, readback %.1f %%", reported)
		d.pause(pwmRetryPause)
	}
	if !haveReport {
		return 0, ErrInsufficientSamples
	}
	log.Printf("[Warning] PWM never converged, accepting %.1f %%", reported)
	return reported, nil
}

// InternalErrors reads the four IR sensor error counters. The device
// clears them on read, so each result is the count since the last call.
// All four decode together or the whole read is reported failed.
func (d *Device) InternalErrors() (*weather.ErrorCounters, error) {
	fields, err := d.eng.Query(protocol.ReqErrors, protocol.DefaultMaxTries)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, ErrInsufficientSamples
	}
	var counts [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad error counter %q: %w", f, err)
		}
		counts[i] = v
	}
	return &weather.ErrorCounters{
		Error1: counts[0],
		Error2: counts[1],
		Error3: counts[2],
		Error4: counts[3],
	}, nil
}

// Switch classifies the relay switch state. Unlike the numeric queries the
// reply is matched against two fixed literals; anything else after three
// tries is Unknown.
func (d *Device) Switch() weather.SwitchState {
	for try := 1; try <= switchMaxTries; try++ {
		text, err := d.eng.Send(protocol.ReqSwitch, 0)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(text, switchOpenReply):
			return weather.SwitchOpen
		case strings.HasPrefix(text, switchClosedReply):
			return weather.SwitchClosed
		}
	}
	return weather.SwitchUnknown
}

// SetSwitchOpen commands the relay switch open. The device sends no
// validated acknowledgement for this command.
func (d *Device) SetSwitchOpen() error {
	_, err := d.eng.Send(protocol.ReqSwitchOpen, 0)
	return err
}

// SetSwitchClosed commands the relay switch closed.
func (d *Device) SetSwitchClosed() error {
	_, err := d.eng.Send(protocol.ReqSwitchClosed, 0)
	return err
}

// ResetBuffers resets the device's RS232 buffer pointers.
func (d *Device) ResetBuffers() error {
	_, err := d.eng.Send(protocol.ReqResetBuffers, 0)
	return err
}

// WindSpeedEnabled probes whether the unit has an anemometer attached.
func (d *Device) WindSpeedEnabled() bool {
	fields, err := d.eng.Query(protocol.ReqAnemometer, protocol.DefaultMaxTries)
	return err == nil && fields != nil
}

// WindSpeed reads the wind speed in km/h, if the anemometer is enabled.
func (d *Device) WindSpeed() (float64, error) {
	if !d.WindSpeedEnabled() {
		return 0, ErrInsufficientSamples
	}
	return d.aggregate(protocol.ReqWindSpeed, windSpeedRepeats, func(fields []string) (float64, error) {
		return weather.WindSpeedKPH(fields[0])
	})
}

// ElectricalConstants reads the raw 12-byte electrical constants block.
func (d *Device) ElectricalConstants() (string, error) {
	fields, err := d.eng.Query(protocol.ReqElectrical, protocol.DefaultMaxTries)
	if err != nil {
		return "", err
	}
	if fields == nil {
		return "", ErrInsufficientSamples
	}
	return fields[0], nil
}

// Acquire runs one full measurement pass and assembles a Sample stamped
// with the device identity. Quantities that fail aggregation are simply
// absent; acquisition itself never fails.
func (d *Device) Acquire(now time.Time) weather.Sample {
	s := weather.Sample{
		Time:            now,
		SensorName:      d.Name,
		FirmwareVersion: d.FirmwareVersion,
		SerialNumber:    d.SerialNumber,
	}

	if v, err := d.SkyTemperature(); err == nil {
		s.SkyTempC = weather.Float(v)
	}
	if v, err := d.AmbientTemperature(); err == nil {
		s.AmbientTempC = weather.Float(v)
	}
	s.InternalVoltageV, s.LDRResistanceKOhm, s.RainSensorTempC = d.Values()
	if v, err := d.RainFrequency(); err == nil {
		s.RainFrequency = weather.Float(v)
	}
	if v, err := d.PWM(); err == nil {
		s.PWMPercent = weather.Float(v)
	}
	if counters, err := d.InternalErrors(); err == nil {
		s.Errors = counters
	}
	if v, err := d.WindSpeed(); err == nil {
		s.WindSpeedKPH = weather.Float(v)
	}
	s.Switch = d.Switch()

	return s
}

// Test seams around engine construction and sleeping.
var (
	newEngine   = protocol.NewEngine
	devicePause = time.Sleep
)

func (d *Device) pause(dur time.Duration) {
	devicePause(dur)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
