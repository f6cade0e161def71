package weather

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmbientTempC(t *testing.T) {
	v, err := AmbientTempC("1550")
	require.NoError(t, err)
	assert.Equal(t, 15.5, v)

	v, err = AmbientTempC("-230")
	require.NoError(t, err)
	assert.Equal(t, -2.3, v)

	_, err = AmbientTempC("abc")
	assert.Error(t, err)
}

func TestSkyTempC(t *testing.T) {
	v, err := SkyTempC("-1875")
	require.NoError(t, err)
	assert.Equal(t, -18.75, v)
}

func TestInternalVoltageV(t *testing.T) {
	// raw 300 -> 1023 * 3 / 300
	v, err := InternalVoltageV("300")
	require.NoError(t, err)
	assert.InDelta(t, 10.23, v, 1e-9)

	_, err = InternalVoltageV("0")
	assert.Error(t, err)
}

func TestLDRResistanceKOhm(t *testing.T) {
	// raw 511.5 is exactly half scale: 56 / (2 - 1) = 56
	v, err := LDRResistanceKOhm("511.5")
	require.NoError(t, err)
	assert.InDelta(t, 56.0, v, 1e-9)

	_, err = LDRResistanceKOhm("0")
	assert.Error(t, err)
	_, err = LDRResistanceKOhm("1023")
	assert.Error(t, err)
}

func TestRainSensorTempC(t *testing.T) {
	// Half scale means the NTC resistance equals its 25 C reference, so
	// the Beta equation collapses to exactly 25 C.
	v, err := RainSensorTempC("511.5")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, v, 1e-9)

	// A smaller reading means a larger resistance, so a colder sensor.
	colder, err := RainSensorTempC("300")
	require.NoError(t, err)
	assert.Less(t, colder, 25.0)

	warmer, err := RainSensorTempC("700")
	require.NoError(t, err)
	assert.Greater(t, warmer, 25.0)

	_, err = RainSensorTempC("0")
	assert.Error(t, err)
	_, err = RainSensorTempC("1023")
	assert.Error(t, err)
}

func TestPWMRoundTrip(t *testing.T) {
	assert.Equal(t, 0, PWMDigital(0))
	assert.Equal(t, 1023, PWMDigital(100))
	assert.Equal(t, 511, PWMDigital(50))

	v, err := PWMPercent("1023")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v, 1e-9)

	v, err = PWMPercent("0")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestMedian(t *testing.T) {
	assert.True(t, math.IsNaN(Median(nil)))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
	assert.Equal(t, 7.0, Median([]float64{7}))
	// Input is not mutated.
	in := []float64{3, 1, 2}
	Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}
