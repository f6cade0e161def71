// Package safety classifies sky, wind, gust and rain conditions from a
// trailing window of samples and produces the composite safe/unsafe
// verdict that gates outdoor operation. Any category that cannot be
// evaluated counts as unsafe.
package safety

import (
	"log"
	"math"
	"time"

	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// Config holds the decision thresholds. Temperatures are sky-minus-ambient
// differences in Celsius, speeds are km/h, rain thresholds are raw rain
// frequency counts (lower is wetter).
type Config struct {
	ThresholdCloudy     float64
	ThresholdVeryCloudy float64
	ThresholdWindy      float64
	ThresholdVeryWindy  float64
	ThresholdGusty      float64
	ThresholdVeryGusty  float64
	ThresholdWet        float64
	ThresholdRain       float64
	SafetyDelay         time.Duration
}

// smoothingSpan is the real-time span the wind moving average
// approximates, regardless of sampling interval.
const smoothingSpan = 120.0 // seconds

// Decide evaluates the latest sample against the historical window
// (ordered oldest first, covering the SafetyDelay span ending at now) and
// returns the verdict. The configuration is an explicit snapshot; callers
// reload it between cycles if they want live tuning.
func Decide(current *weather.Sample, history []weather.Sample, now time.Time, cfg Config) weather.Verdict {
	v := weather.Verdict{
		Sky:  weather.SkyUnknown,
		Wind: weather.WindUnknown,
		Gust: weather.GustUnknown,
		Rain: weather.RainUnknown,
	}

	skySafe := decideSky(current, history, cfg, &v)
	windSafe, gustSafe := decideWind(current, history, now, cfg, &v)
	rainSafe := decideRain(current, history, cfg, &v)

	v.RainSafe = rainSafe
	v.Safe = skySafe && windSafe && gustSafe && rainSafe
	if v.Safe {
		log.Printf("Weather is safe")
	} else {
		log.Printf("Weather is unsafe")
	}
	return v
}

// decideSky checks cloudiness. The safety flag considers the whole window;
// the condition label reflects only the current sample.
func decideSky(current *weather.Sample, history []weather.Sample, cfg Config, v *weather.Verdict) bool {
	var diffs []float64
	for i := range history {
		if d, ok := history[i].SkyDiff(); ok {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) == 0 {
		log.Printf("  UNSAFE: no sky temperatures found")
		return false
	}

	safe := true
	if maxOf(diffs) > cfg.ThresholdVeryCloudy {
		log.Printf("  UNSAFE: Very cloudy. Max sky diff %.1f C", maxOf(diffs))
		safe = false
	}

	if d, ok := current.SkyDiff(); ok {
		switch {
		case d > cfg.ThresholdVeryCloudy:
			v.Sky = weather.SkyVeryCloudy
		case d > cfg.ThresholdCloudy:
			v.Sky = weather.SkyCloudy
		default:
			v.Sky = weather.SkyClear
		}
		log.Printf("  Cloud Condition: %s (Sky-Amb=%.1f C)", v.Sky, d)
	}
	return safe
}

// decideWind checks sustained wind (against a smoothed series) and gusts
// (against the raw series).
func decideWind(current *weather.Sample, history []weather.Sample, now time.Time, cfg Config, v *weather.Verdict) (windSafe, gustSafe bool) {
	var speeds []float64
	for i := range history {
		if history[i].WindSpeedKPH != nil {
			speeds = append(speeds, *history[i].WindSpeedKPH)
		}
	}
	if len(speeds) == 0 {
		log.Printf("  UNSAFE: no wind speed readings found")
		return false, false
	}

	// Size the smoothing window so it spans about two minutes of real
	// time at the window's average sampling interval.
	oldest := history[0].Time
	for i := range history {
		if history[i].Time.Before(oldest) {
			oldest = history[i].Time
		}
	}
	interval := now.Sub(oldest).Seconds() / float64(len(history))
	count := 1
	if interval > 0 {
		count = int(math.Ceil(smoothingSpan / interval))
	}
	smoothed := movingAverage(speeds, count)

	windSafe = true
	if maxOf(smoothed) > cfg.ThresholdVeryWindy {
		log.Printf("  UNSAFE: Very windy. Max wind speed %.1f kph", maxOf(smoothed))
		windSafe = false
	}
	last := smoothed[len(smoothed)-1]
	switch {
	case last > cfg.ThresholdVeryWindy:
		v.Wind = weather.WindVeryWindy
	case last > cfg.ThresholdWindy:
		v.Wind = weather.WindWindy
	default:
		v.Wind = weather.WindCalm
	}
	log.Printf("  Wind Condition: %s (%.1f km/h)", v.Wind, last)

	gustSafe = true
	if maxOf(speeds) > cfg.ThresholdVeryGusty {
		log.Printf("  UNSAFE: Very gusty. Max gust speed %.1f kph", maxOf(speeds))
		gustSafe = false
	}
	if current.WindSpeedKPH != nil {
		switch {
		case *current.WindSpeedKPH > cfg.ThresholdVeryGusty:
			v.Gust = weather.GustVeryGusty
		case *current.WindSpeedKPH > cfg.ThresholdGusty:
			v.Gust = weather.GustGusty
		default:
			v.Gust = weather.GustCalm
		}
		log.Printf("  Gust Condition: %s (%.1f km/h)", v.Gust, *current.WindSpeedKPH)
	}
	return windSafe, gustSafe
}

// decideRain classifies the current rain frequency, then lets the window
// minimum downgrade a tentatively-safe flag. The label deliberately stays
// with the current sample even when the window overrides the flag.
func decideRain(current *weather.Sample, history []weather.Sample, cfg Config, v *weather.Verdict) bool {
	var freqs []float64
	for i := range history {
		if history[i].RainFrequency != nil {
			freqs = append(freqs, *history[i].RainFrequency)
		}
	}
	if len(freqs) == 0 {
		return false
	}
	if current.RainFrequency == nil {
		return false
	}

	safe := false
	rf := *current.RainFrequency
	switch {
	case rf <= cfg.ThresholdRain:
		v.Rain = weather.RainRain
	case rf <= cfg.ThresholdWet:
		v.Rain = weather.RainWet
	default:
		v.Rain = weather.RainDry
		safe = true
	}

	if safe {
		switch {
		case minOf(freqs) <= cfg.ThresholdRain:
			log.Printf("  UNSAFE: Rain in window")
			safe = false
		case minOf(freqs) <= cfg.ThresholdWet:
			log.Printf("  UNSAFE: Wet in window")
			safe = false
		}
	}
	log.Printf("  Rain Condition: %s", v.Rain)
	return safe
}

// movingAverage is a centered moving average with zero padding at the
// edges, matching a convolution against a normalized box kernel.
func movingAverage(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	if window <= 1 {
		copy(out, series)
		return out
	}
	offset := (window - 1) / 2
	for i := range series {
		lo := i + offset - window + 1
		hi := i + offset
		if lo < 0 {
			lo = 0
		}
		if hi > len(series)-1 {
			hi = len(series) - 1
		}
		var sum float64
		for k := lo; k <= hi; k++ {
			sum += series[k]
		}
		out[i] = sum / float64(window)
	}
	return out
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
