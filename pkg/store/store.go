// Package store persists capture samples and serves the windowed range
// queries the safety and heater logic depend on. Samples are append-only:
// writers insert in capture order, readers get ordered copies, nothing is
// mutated in place.
package store

import (
	"time"

	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// Store is the persistence contract for one device's sample series.
type Store interface {
	// Insert appends one sample. The store assigns the record ID.
	Insert(s weather.Sample) error
	// Range returns samples with start < Time < end, oldest first.
	Range(start, end time.Time) ([]weather.Sample, error)
	// Current returns the most recently inserted sample, or nil if none.
	Current() (*weather.Sample, error)
}
