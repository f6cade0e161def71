package device

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshwalawender/AAGonRPi/pkg/protocol"
	"github.com/joshwalawender/AAGonRPi/pkg/transport"
	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

const trailer = "\x11            0"

// reply builds a single-field framed device reply.
func reply(tag, value string) string {
	return fmt.Sprintf("!%s%13s!%s", tag, value, trailer)
}

// fastSeams removes the real-time pauses for the duration of a test.
func fastSeams(t *testing.T) {
	t.Helper()
	oldEngine, oldPause := newEngine, devicePause
	newEngine = func(ch transport.Channel) *protocol.Engine {
		e := protocol.NewEngine(ch)
		e.Sleep = func(time.Duration) {}
		return e
	}
	devicePause = func(time.Duration) {}
	t.Cleanup(func() {
		newEngine, devicePause = oldEngine, oldPause
	})
}

// identityReplies scripts the three identification queries.
func identityReplies(m *transport.Mock) {
	m.RespondAlways(protocol.ReqName, reply("N", "CloudWatcher"))
	m.RespondAlways(protocol.ReqFirmware, reply("V", "5.89"))
	m.RespondAlways(protocol.ReqSerialNumber, "!K2001\x00!"+trailer)
}

func openTestDevice(t *testing.T, m *transport.Mock) *Device {
	t.Helper()
	identityReplies(m)
	d, err := Open(m)
	require.NoError(t, err)
	return d
}

func TestOpen_Identifies(t *testing.T) {
	fastSeams(t)
	d := openTestDevice(t, transport.NewMock())

	assert.Equal(t, "CloudWatcher", d.Name)
	assert.Equal(t, "5.89", d.FirmwareVersion)
	assert.Equal(t, "2001", d.SerialNumber)
}

func TestOpen_FailsWithoutIdentity(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()

	_, err := Open(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device name")
}

func TestSkyTemperature_MedianOfRepeats(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	// Nine reads; the median of 100..900 hundredths is 500.
	for _, raw := range []string{"300", "100", "900", "700", "500", "200", "800", "400", "600"} {
		m.Respond(protocol.ReqSkyTemp, reply("1", raw))
	}
	d := openTestDevice(t, m)

	v, err := d.SkyTemperature()
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestAmbientTemperature_ToleratesOneLostRead(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	// Four of five repeats answer; the fifth goes silent, which is within
	// the minimum-valid-count policy.
	m.Respond(protocol.ReqAmbientTemp,
		reply("2", "1500"), reply("2", "1510"), reply("2", "1490"), reply("2", "1500"))
	d := openTestDevice(t, m)

	v, err := d.AmbientTemperature()
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)
}

func TestAmbientTemperature_InsufficientSamples(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	m.Respond(protocol.ReqAmbientTemp,
		reply("2", "1500"), reply("2", "1510"), reply("2", "1490"))
	d := openTestDevice(t, m)

	_, err := d.AmbientTemperature()
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestValues(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	block := "!6" + fmt.Sprintf("%13s", "300") +
		"!4" + fmt.Sprintf("%13s", "511.5") +
		"!5" + fmt.Sprintf("%13s", "511.5") + "!" + trailer
	m.RespondAlways(protocol.ReqValues, block)
	d := openTestDevice(t, m)

	voltage, ldr, rainTemp := d.Values()
	require.NotNil(t, voltage)
	require.NotNil(t, ldr)
	require.NotNil(t, rainTemp)
	assert.InDelta(t, 10.23, *voltage, 1e-9)
	assert.InDelta(t, 56.0, *ldr, 1e-9)
	assert.InDelta(t, 25.0, *rainTemp, 1e-9)
}

func TestValues_BadFieldDropsLaterQuantities(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	// The LDR field pins to full scale, so the rain sensor field from the
	// same replies is discarded too.
	block := "!6" + fmt.Sprintf("%13s", "300") +
		"!4" + fmt.Sprintf("%13s", "1023") +
		"!5" + fmt.Sprintf("%13s", "511.5") + "!" + trailer
	m.RespondAlways(protocol.ReqValues, block)
	d := openTestDevice(t, m)

	voltage, ldr, rainTemp := d.Values()
	assert.NotNil(t, voltage)
	assert.Nil(t, ldr)
	assert.Nil(t, rainTemp)
}

func TestSetPWM_WithinTolerance(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	m.RespondAlways("P0511!", reply("Q", "511"))
	d := openTestDevice(t, m)

	v, err := d.SetPWM(50)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, v, 0.1)
}

func TestSetPWM_ClampsRange(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	m.RespondAlways("P0000!", reply("Q", "0"))
	m.RespondAlways("P1023!", reply("Q", "1023"))
	d := openTestDevice(t, m)

	v, err := d.SetPWM(-20)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = d.SetPWM(150)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v, 1e-9)
}

func TestSetPWM_AcceptsLastValueAfterExhaustion(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	// The device insists on a wildly different duty cycle.
	m.RespondAlways("P0511!", reply("Q", "900"))
	d := openTestDevice(t, m)

	v, err := d.SetPWM(50)
	require.NoError(t, err)
	assert.InDelta(t, 900.0*100.0/1023.0, v, 1e-9)

	sets := 0
	for _, w := range m.Writes() {
		if w == "P0511!" {
			sets++
		}
	}
	assert.Equal(t, pwmSetMaxTries, sets)
}

func TestSwitch(t *testing.T) {
	fastSeams(t)

	m := transport.NewMock()
	m.RespondAlways(protocol.ReqSwitch, switchOpenReply+trailer)
	d := openTestDevice(t, m)
	assert.Equal(t, weather.SwitchOpen, d.Switch())

	m = transport.NewMock()
	m.RespondAlways(protocol.ReqSwitch, switchClosedReply+trailer)
	d = openTestDevice(t, m)
	assert.Equal(t, weather.SwitchClosed, d.Switch())

	m = transport.NewMock()
	m.RespondAlways(protocol.ReqSwitch, "garbage")
	d = openTestDevice(t, m)
	assert.Equal(t, weather.SwitchUnknown, d.Switch())
	// Three attempts before giving up, after the identification traffic.
	switches := 0
	for _, w := range m.Writes() {
		if w == protocol.ReqSwitch {
			switches++
		}
	}
	assert.Equal(t, switchMaxTries, switches)
}

func TestSwitchCommands_SentWithoutValidation(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	d := openTestDevice(t, m)

	require.NoError(t, d.SetSwitchOpen())
	require.NoError(t, d.SetSwitchClosed())
	require.NoError(t, d.ResetBuffers())

	writes := m.Writes()
	assert.Contains(t, writes, protocol.ReqSwitchOpen)
	assert.Contains(t, writes, protocol.ReqSwitchClosed)
	assert.Contains(t, writes, protocol.ReqResetBuffers)
}

func TestInternalErrors(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	block := "!E1" + fmt.Sprintf("%13s", "0") +
		"!E2" + fmt.Sprintf("%13s", "1") +
		"!E3" + fmt.Sprintf("%13s", "2") +
		"!E4" + fmt.Sprintf("%13s", "3") + "!" + trailer
	m.RespondAlways(protocol.ReqErrors, block)
	d := openTestDevice(t, m)

	counters, err := d.InternalErrors()
	require.NoError(t, err)
	assert.Equal(t, &weather.ErrorCounters{Error1: 0, Error2: 1, Error3: 2, Error4: 3}, counters)
}

func TestElectricalConstants(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	m.RespondAlways(protocol.ReqElectrical, "!MZABCDEFGHIJK"+trailer)
	d := openTestDevice(t, m)

	block, err := d.ElectricalConstants()
	require.NoError(t, err)
	assert.Equal(t, "ZABCDEFGHIJK", block)
}

func TestWindSpeed_RequiresAnemometer(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	d := openTestDevice(t, m)

	assert.False(t, d.WindSpeedEnabled())
	_, err := d.WindSpeed()
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestWindSpeed(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	m.RespondAlways(protocol.ReqAnemometer, reply("v", "1"))
	m.Respond(protocol.ReqWindSpeed, reply("w", "10"), reply("w", "12"), reply("w", "14"))
	d := openTestDevice(t, m)

	v, err := d.WindSpeed()
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
}

func TestAcquire(t *testing.T) {
	fastSeams(t)
	m := transport.NewMock()
	m.RespondAlways(protocol.ReqSkyTemp, reply("1", "-1800"))
	m.RespondAlways(protocol.ReqAmbientTemp, reply("2", "1500"))
	m.RespondAlways(protocol.ReqValues,
		"!6"+fmt.Sprintf("%13s", "300")+
			"!4"+fmt.Sprintf("%13s", "511.5")+
			"!5"+fmt.Sprintf("%13s", "511.5")+"!"+trailer)
	m.RespondAlways(protocol.ReqRainFrequency, reply("R", "2500"))
	m.RespondAlways(protocol.ReqPWM, reply("Q", "0"))
	m.RespondAlways(protocol.ReqErrors,
		"!E1"+fmt.Sprintf("%13s", "0")+
			"!E2"+fmt.Sprintf("%13s", "0")+
			"!E3"+fmt.Sprintf("%13s", "0")+
			"!E4"+fmt.Sprintf("%13s", "0")+"!"+trailer)
	m.RespondAlways(protocol.ReqAnemometer, reply("v", "1"))
	m.RespondAlways(protocol.ReqWindSpeed, reply("w", "8"))
	m.RespondAlways(protocol.ReqSwitch, switchOpenReply+trailer)
	d := openTestDevice(t, m)

	now := time.Now()
	s := d.Acquire(now)

	assert.Equal(t, now, s.Time)
	assert.Equal(t, "CloudWatcher", s.SensorName)
	assert.Equal(t, "2001", s.SerialNumber)
	require.NotNil(t, s.SkyTempC)
	assert.Equal(t, -18.0, *s.SkyTempC)
	require.NotNil(t, s.AmbientTempC)
	assert.Equal(t, 15.0, *s.AmbientTempC)
	assert.NotNil(t, s.InternalVoltageV)
	assert.NotNil(t, s.LDRResistanceKOhm)
	assert.NotNil(t, s.RainSensorTempC)
	require.NotNil(t, s.RainFrequency)
	assert.Equal(t, 2500.0, *s.RainFrequency)
	assert.NotNil(t, s.PWMPercent)
	assert.NotNil(t, s.Errors)
	require.NotNil(t, s.WindSpeedKPH)
	assert.Equal(t, 8.0, *s.WindSpeedKPH)
	assert.Equal(t, weather.SwitchOpen, s.Switch)

	diff, ok := s.SkyDiff()
	require.True(t, ok)
	assert.Equal(t, -33.0, diff)
}
