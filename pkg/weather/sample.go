package weather

import "time"

// SwitchState is the reported position of the device's relay switch.
type SwitchState string

const (
	SwitchUnknown SwitchState = "UNKNOWN"
	SwitchOpen    SwitchState = "OPEN"
	SwitchClosed  SwitchState = "CLOSED"
)

// Condition labels for each safety category. Unknown means the category
// could not be evaluated and is treated as unsafe.
type (
	SkyCondition  string
	WindCondition string
	GustCondition string
	RainCondition string
)

const (
	SkyUnknown    SkyCondition = "Unknown"
	SkyClear      SkyCondition = "Clear"
	SkyCloudy     SkyCondition = "Cloudy"
	SkyVeryCloudy SkyCondition = "Very Cloudy"

	WindUnknown   WindCondition = "Unknown"
	WindCalm      WindCondition = "Calm"
	WindWindy     WindCondition = "Windy"
	WindVeryWindy WindCondition = "Very Windy"

	GustUnknown   GustCondition = "Unknown"
	GustCalm      GustCondition = "Calm"
	GustGusty     GustCondition = "Gusty"
	GustVeryGusty GustCondition = "Very Gusty"

	RainUnknown RainCondition = "Unknown"
	RainRain    RainCondition = "Rain"
	RainWet     RainCondition = "Wet"
	RainDry     RainCondition = "Dry"
)

// ErrorCounters holds the device's four internal IR-sensor error counters.
// The device resets the counters after each read, so every value is the
// count accumulated since the previous read.
type ErrorCounters struct {
	Error1 float64 `json:"error_1"`
	Error2 float64 `json:"error_2"`
	Error3 float64 `json:"error_3"`
	Error4 float64 `json:"error_4"`
}

// Verdict is the composite safety decision for one capture cycle. RainSafe
// carries the rain category's flag separately because the heater controller
// keys its impulse mode off persisted rain-safe history. Note the flag may
// disagree with the Rain label: a currently-Dry reading is downgraded when
// the trailing window saw rain, while the label stays current-sample-only.
type Verdict struct {
	Safe     bool          `json:"safe"`
	Sky      SkyCondition  `json:"sky_condition"`
	Wind     WindCondition `json:"wind_condition"`
	Gust     GustCondition `json:"gust_condition"`
	Rain     RainCondition `json:"rain_condition"`
	RainSafe bool          `json:"rain_safe"`
}

// Sample is one fully-resolved measurement cycle. A nil field means
// aggregation failed for that quantity this cycle; fields are never
// defaulted to zero. Samples are immutable once persisted.
type Sample struct {
	ID   string    `json:"id,omitempty"`
	Time time.Time `json:"date"`

	SensorName      string `json:"weather_sensor_name,omitempty"`
	FirmwareVersion string `json:"weather_sensor_firmware_version,omitempty"`
	SerialNumber    string `json:"weather_sensor_serial_number,omitempty"`

	SkyTempC          *float64       `json:"sky_temp_C,omitempty"`
	AmbientTempC      *float64       `json:"ambient_temp_C,omitempty"`
	InternalVoltageV  *float64       `json:"internal_voltage_V,omitempty"`
	LDRResistanceKOhm *float64       `json:"ldr_resistance_kOhm,omitempty"`
	RainSensorTempC   *float64       `json:"rain_sensor_temp_C,omitempty"`
	RainFrequency     *float64       `json:"rain_frequency,omitempty"`
	PWMPercent        *float64       `json:"pwm_value,omitempty"`
	WindSpeedKPH      *float64       `json:"wind_speed_KPH,omitempty"`
	Errors            *ErrorCounters `json:"errors,omitempty"`
	Switch            SwitchState    `json:"switch,omitempty"`

	Safe     *bool         `json:"safe,omitempty"`
	Sky      SkyCondition  `json:"sky_condition,omitempty"`
	Wind     WindCondition `json:"wind_condition,omitempty"`
	Gust     GustCondition `json:"gust_condition,omitempty"`
	RainCond RainCondition `json:"rain_condition,omitempty"`
	RainSafe *bool         `json:"rain_safe,omitempty"`
}

// SkyDiff returns sky temperature minus ambient temperature, the cloudiness
// measure used by the safety engine. ok is false if either field is absent.
func (s *Sample) SkyDiff() (diff float64, ok bool) {
	if s.SkyTempC == nil || s.AmbientTempC == nil {
		return 0, false
	}
	return *s.SkyTempC - *s.AmbientTempC, true
}

// ApplyVerdict stamps the safety decision onto the sample before it is
// persisted.
func (s *Sample) ApplyVerdict(v Verdict) {
	safe := v.Safe
	rainSafe := v.RainSafe
	s.Safe = &safe
	s.Sky = v.Sky
	s.Wind = v.Wind
	s.Gust = v.Gust
	s.RainCond = v.Rain
	s.RainSafe = &rainSafe
}

// Float returns a pointer to v. Convenience for building samples.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
