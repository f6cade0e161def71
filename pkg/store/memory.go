package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// DefaultRetention keeps comfortably more history than the widest consumer
// window (the 15 minute safety delay and the 10 minute impulse cycle).
const DefaultRetention = 2 * time.Hour

// Memory is an in-process Store. The buffer is ordered oldest first and
// trimmed by age against the newest sample's timestamp.
type Memory struct {
	mu        sync.RWMutex
	samples   []weather.Sample
	retention time.Duration
}

var _ Store = (*Memory)(nil)

// NewMemory creates a store that retains samples for the given duration.
// Pass 0 for the default.
func NewMemory(retention time.Duration) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Memory{retention: retention}
}

// Insert appends a sample, assigning it a record ID. Samples must arrive
// in capture order; a timestamp older than the newest stored sample is
// rejected so readers always observe a monotonic series.
func (m *Memory) Insert(s weather.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.samples); n > 0 && s.Time.Before(m.samples[n-1].Time) {
		return fmt.Errorf("sample at %s is older than newest stored sample %s",
			s.Time.Format(time.RFC3339), m.samples[n-1].Time.Format(time.RFC3339))
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	m.samples = append(m.samples, s)

	// Trim by age, keyed to the newest timestamp.
	cutoff := s.Time.Add(-m.retention)
	trim := 0
	for trim < len(m.samples) && m.samples[trim].Time.Before(cutoff) {
		trim++
	}
	if trim > 0 {
		m.samples = append(m.samples[:0], m.samples[trim:]...)
	}
	return nil
}

// Range returns copies of samples strictly inside (start, end), oldest
// first.
func (m *Memory) Range(start, end time.Time) ([]weather.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []weather.Sample
	for i := range m.samples {
		t := m.samples[i].Time
		if t.After(start) && t.Before(end) {
			out = append(out, m.samples[i])
		}
	}
	return out, nil
}

// Current returns a copy of the newest sample, or nil if the store is
// empty.
func (m *Memory) Current() (*weather.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) == 0 {
		return nil, nil
	}
	s := m.samples[len(m.samples)-1]
	return &s, nil
}

// Len returns the number of retained samples.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples)
}
