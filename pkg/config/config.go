// Package config loads the daemon configuration from a YAML file,
// backfilling every missing field with the documented default so a partial
// (or absent) file always yields a runnable configuration. Durations are
// written in the units the sensor documentation uses: seconds, except the
// safety delay which is minutes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshwalawender/AAGonRPi/pkg/alert"
	"github.com/joshwalawender/AAGonRPi/pkg/bus"
	"github.com/joshwalawender/AAGonRPi/pkg/heater"
	"github.com/joshwalawender/AAGonRPi/pkg/httpapi"
	"github.com/joshwalawender/AAGonRPi/pkg/pid"
	"github.com/joshwalawender/AAGonRPi/pkg/safety"
)

// Config represents the application configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Capture CaptureConfig `yaml:"capture"`
	Heater  HeaterConfig  `yaml:"heater"`
	PID     PIDConfig     `yaml:"pid"`
	Safety  SafetyConfig  `yaml:"safety"`
	HTTP    HTTPConfig    `yaml:"http"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Mail    MailConfig    `yaml:"mail"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// CaptureConfig controls the measurement loop.
type CaptureConfig struct {
	IntervalSeconds  float64 `yaml:"interval"`
	RetentionMinutes float64 `yaml:"retention"`
}

// HeaterConfig contains the rain sensor heater thresholds. Durations are
// seconds.
type HeaterConfig struct {
	LowTemp         float64 `yaml:"low_temp"`
	LowDelta        float64 `yaml:"low_delta"`
	HighTemp        float64 `yaml:"high_temp"`
	HighDelta       float64 `yaml:"high_delta"`
	MinPower        float64 `yaml:"min_power"`
	ImpulseTemp     float64 `yaml:"impulse_temp"`
	ImpulseDuration float64 `yaml:"impulse_duration"`
	ImpulseCycle    float64 `yaml:"impulse_cycle"`
}

// PIDConfig contains the heater PID gains. MaxAge is seconds.
type PIDConfig struct {
	Kp     float64 `yaml:"kp"`
	Ki     float64 `yaml:"ki"`
	Kd     float64 `yaml:"kd"`
	MaxAge float64 `yaml:"max_age"`
}

// SafetyConfig contains the safety decision thresholds. SafetyDelay is
// minutes.
type SafetyConfig struct {
	ThresholdCloudy     float64 `yaml:"threshold_cloudy"`
	ThresholdVeryCloudy float64 `yaml:"threshold_very_cloudy"`
	ThresholdWindy      float64 `yaml:"threshold_windy"`
	ThresholdVeryWindy  float64 `yaml:"threshold_very_windy"`
	ThresholdGusty      float64 `yaml:"threshold_gusty"`
	ThresholdVeryGusty  float64 `yaml:"threshold_very_gusty"`
	ThresholdWet        float64 `yaml:"threshold_wet"`
	ThresholdRain       float64 `yaml:"threshold_rainy"`
	SafetyDelay         float64 `yaml:"safety_delay"`
}

// HTTPConfig contains the status server settings.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
}

// KafkaConfig contains the telemetry publisher settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MailConfig contains the Mailgun alert settings. Cooldown is seconds.
type MailConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Domain     string   `yaml:"domain"`
	APIKey     string   `yaml:"api_key"`
	Sender     string   `yaml:"sender"`
	Recipients []string `yaml:"recipients"`
	Cooldown   float64  `yaml:"cooldown"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 9600,
		},
		Capture: CaptureConfig{
			IntervalSeconds:  30,
			RetentionMinutes: 120,
		},
		Heater: HeaterConfig{
			LowTemp:         0,
			LowDelta:        6,
			HighTemp:        20,
			HighDelta:       4,
			MinPower:        10,
			ImpulseTemp:     10,
			ImpulseDuration: 60,
			ImpulseCycle:    600,
		},
		PID: PIDConfig{
			Kp:     3.0,
			Ki:     0.02,
			Kd:     200.0,
			MaxAge: 300,
		},
		Safety: SafetyConfig{
			ThresholdCloudy:     -22.5,
			ThresholdVeryCloudy: -15.0,
			ThresholdWindy:      20.0,
			ThresholdVeryWindy:  30.0,
			ThresholdGusty:      40.0,
			ThresholdVeryGusty:  50.0,
			ThresholdWet:        2000,
			ThresholdRain:       1700,
			SafetyDelay:         15,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Bind:    ":8080",
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "weather.samples",
		},
		Mail: MailConfig{
			Enabled:  false,
			Cooldown: 900,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ensureDefaults ensures that required fields have default values if
// missing from the file.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Capture.IntervalSeconds == 0 {
		c.Capture.IntervalSeconds = def.Capture.IntervalSeconds
	}
	if c.Capture.RetentionMinutes == 0 {
		c.Capture.RetentionMinutes = def.Capture.RetentionMinutes
	}

	if c.Heater.LowDelta == 0 {
		c.Heater.LowDelta = def.Heater.LowDelta
	}
	if c.Heater.HighTemp == 0 {
		c.Heater.HighTemp = def.Heater.HighTemp
	}
	if c.Heater.HighDelta == 0 {
		c.Heater.HighDelta = def.Heater.HighDelta
	}
	if c.Heater.MinPower == 0 {
		c.Heater.MinPower = def.Heater.MinPower
	}
	if c.Heater.ImpulseTemp == 0 {
		c.Heater.ImpulseTemp = def.Heater.ImpulseTemp
	}
	if c.Heater.ImpulseDuration == 0 {
		c.Heater.ImpulseDuration = def.Heater.ImpulseDuration
	}
	if c.Heater.ImpulseCycle == 0 {
		c.Heater.ImpulseCycle = def.Heater.ImpulseCycle
	}

	if c.PID.Kp == 0 {
		c.PID.Kp = def.PID.Kp
	}
	if c.PID.Ki == 0 {
		c.PID.Ki = def.PID.Ki
	}
	if c.PID.Kd == 0 {
		c.PID.Kd = def.PID.Kd
	}
	if c.PID.MaxAge == 0 {
		c.PID.MaxAge = def.PID.MaxAge
	}

	if c.Safety.ThresholdCloudy == 0 {
		c.Safety.ThresholdCloudy = def.Safety.ThresholdCloudy
	}
	if c.Safety.ThresholdVeryCloudy == 0 {
		c.Safety.ThresholdVeryCloudy = def.Safety.ThresholdVeryCloudy
	}
	if c.Safety.ThresholdWindy == 0 {
		c.Safety.ThresholdWindy = def.Safety.ThresholdWindy
	}
	if c.Safety.ThresholdVeryWindy == 0 {
		c.Safety.ThresholdVeryWindy = def.Safety.ThresholdVeryWindy
	}
	if c.Safety.ThresholdGusty == 0 {
		c.Safety.ThresholdGusty = def.Safety.ThresholdGusty
	}
	if c.Safety.ThresholdVeryGusty == 0 {
		c.Safety.ThresholdVeryGusty = def.Safety.ThresholdVeryGusty
	}
	if c.Safety.ThresholdWet == 0 {
		c.Safety.ThresholdWet = def.Safety.ThresholdWet
	}
	if c.Safety.ThresholdRain == 0 {
		c.Safety.ThresholdRain = def.Safety.ThresholdRain
	}
	if c.Safety.SafetyDelay == 0 {
		c.Safety.SafetyDelay = def.Safety.SafetyDelay
	}

	if c.HTTP.Bind == "" {
		c.HTTP.Bind = def.HTTP.Bind
	}
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = def.Kafka.Brokers
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = def.Kafka.Topic
	}
	if c.Mail.Cooldown == 0 {
		c.Mail.Cooldown = def.Mail.Cooldown
	}
}

// CaptureInterval returns the pause between capture cycles.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Capture.IntervalSeconds * float64(time.Second))
}

// Retention returns how long the sample store keeps history.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Capture.RetentionMinutes * float64(time.Minute))
}

// HeaterSettings converts the YAML heater section into the controller's
// typed configuration.
func (c *Config) HeaterSettings() heater.Config {
	return heater.Config{
		LowTemp:         c.Heater.LowTemp,
		LowDelta:        c.Heater.LowDelta,
		HighTemp:        c.Heater.HighTemp,
		HighDelta:       c.Heater.HighDelta,
		MinPower:        c.Heater.MinPower,
		ImpulseTemp:     c.Heater.ImpulseTemp,
		ImpulseDuration: time.Duration(c.Heater.ImpulseDuration * float64(time.Second)),
		ImpulseCycle:    time.Duration(c.Heater.ImpulseCycle * float64(time.Second)),
	}
}

// SafetySettings converts the YAML safety section into the decision
// engine's typed configuration.
func (c *Config) SafetySettings() safety.Config {
	return safety.Config{
		ThresholdCloudy:     c.Safety.ThresholdCloudy,
		ThresholdVeryCloudy: c.Safety.ThresholdVeryCloudy,
		ThresholdWindy:      c.Safety.ThresholdWindy,
		ThresholdVeryWindy:  c.Safety.ThresholdVeryWindy,
		ThresholdGusty:      c.Safety.ThresholdGusty,
		ThresholdVeryGusty:  c.Safety.ThresholdVeryGusty,
		ThresholdWet:        c.Safety.ThresholdWet,
		ThresholdRain:       c.Safety.ThresholdRain,
		SafetyDelay:         time.Duration(c.Safety.SafetyDelay * float64(time.Minute)),
	}
}

// NewPID builds the heater PID controller with the configured gains and
// output limits [min_power, 100].
func (c *Config) NewPID() *pid.Controller {
	return pid.New(c.PID.Kp, c.PID.Ki, c.PID.Kd,
		time.Duration(c.PID.MaxAge*float64(time.Second)),
		c.Heater.MinPower, 100)
}

// HTTPSettings converts the YAML http section.
func (c *Config) HTTPSettings() httpapi.Config {
	return httpapi.Config{Enabled: c.HTTP.Enabled, Bind: c.HTTP.Bind}
}

// KafkaSettings converts the YAML kafka section.
func (c *Config) KafkaSettings() bus.Config {
	return bus.Config{Enabled: c.Kafka.Enabled, Brokers: c.Kafka.Brokers, Topic: c.Kafka.Topic}
}

// MailSettings converts the YAML mail section.
func (c *Config) MailSettings() alert.Config {
	return alert.Config{
		Enabled:    c.Mail.Enabled,
		Domain:     c.Mail.Domain,
		APIKey:     c.Mail.APIKey,
		Sender:     c.Mail.Sender,
		Recipients: c.Mail.Recipients,
		Cooldown:   time.Duration(c.Mail.Cooldown * float64(time.Second)),
	}
}
