package weather

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Calibration constants from Rs232_Comms_v100.pdf, section "Converting
// values sent by the device to meaningful units".
const (
	zenerConstant        = 3.0
	ldrPullupResistance  = 56.0 // kOhm
	rainPullupResistance = 1.0
	rainResistanceAt25   = 1.0
	rainBeta             = 3450.0
	absoluteZero         = 273.15
)

// parseRaw parses one whitespace-padded numeric field from a device reply.
func parseRaw(field string) (float64, error) {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric field %q: %w", field, err)
	}
	return v, nil
}

// AmbientTempC converts a raw !T reading (hundredths of a degree) to Celsius.
func AmbientTempC(field string) (float64, error) {
	raw, err := parseRaw(field)
	if err != nil {
		return 0, err
	}
	return raw / 100.0, nil
}

// SkyTempC converts a raw !S infrared reading (hundredths of a degree) to
// Celsius.
func SkyTempC(field string) (float64, error) {
	raw, err := parseRaw(field)
	if err != nil {
		return 0, err
	}
	return raw / 100.0, nil
}

// InternalVoltageV converts the zener reference ADC reading to volts.
func InternalVoltageV(field string) (float64, error) {
	raw, err := parseRaw(field)
	if err != nil {
		return 0, err
	}
	if raw == 0 {
		return 0, fmt.Errorf("zener reading is zero")
	}
	return 1023.0 * zenerConstant / raw, nil
}

// LDRResistanceKOhm converts the ambient-light ADC reading to the LDR's
// resistance in kOhm.
func LDRResistanceKOhm(field string) (float64, error) {
	raw, err := parseRaw(field)
	if err != nil {
		return 0, err
	}
	if raw == 0 || raw == 1023 {
		return 0, fmt.Errorf("LDR reading %v out of divider range", raw)
	}
	return ldrPullupResistance / (1023.0/raw - 1.0), nil
}

// RainSensorTempC converts the rain sensor NTC ADC reading to Celsius using
// the Beta equation with a 25 C reference.
func RainSensorTempC(field string) (float64, error) {
	raw, err := parseRaw(field)
	if err != nil {
		return 0, err
	}
	if raw == 0 || raw == 1023 {
		return 0, fmt.Errorf("rain sensor reading %v out of divider range", raw)
	}
	arg := (rainPullupResistance / (1023.0/raw - 1.0)) / rainResistanceAt25
	if arg <= 0 {
		return 0, fmt.Errorf("rain sensor reading %v outside NTC domain", raw)
	}
	r := math.Log(arg)
	return 1.0/(r/rainBeta+1.0/(absoluteZero+25.0)) - absoluteZero, nil
}

// PWMPercent converts a raw PWM duty cycle reading (0-1023) to percent.
func PWMPercent(field string) (float64, error) {
	raw, err := parseRaw(field)
	if err != nil {
		return 0, err
	}
	return raw * 100.0 / 1023.0, nil
}

// PWMDigital converts a percentage to the 0-1023 duty cycle value the
// device expects in a P command.
func PWMDigital(percent float64) int {
	return int(1023.0 * percent / 100.0)
}

// WindSpeedKPH parses a raw V! reading, already in km/h.
func WindSpeedKPH(field string) (float64, error) {
	return parseRaw(field)
}

// RainFrequency parses a raw !E rain frequency counter value.
func RainFrequency(field string) (float64, error) {
	return parseRaw(field)
}

// Median returns the median of vs: the middle value for odd counts, the
// mean of the two middle values for even counts. Returns NaN for an empty
// slice.
func Median(vs []float64) float64 {
	if len(vs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2.0
}
