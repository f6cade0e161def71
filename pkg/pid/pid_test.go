package pid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecalculate_ProportionalOnly(t *testing.T) {
	c := New(2.0, 0, 0, 5*time.Minute, -1000, 1000)
	now := time.Now()

	// First call has one history entry and no derivative state.
	out := c.Recalculate(10, 15, now)
	assert.Equal(t, 10.0, out) // Kp * (15-10)
	assert.Equal(t, 5.0, c.Pval)
	assert.Equal(t, 0.0, c.Ival)
	assert.Equal(t, 0.0, c.Dval)
}

func TestRecalculate_IntegralAccumulation(t *testing.T) {
	c := New(0, 1.0, 0, 5*time.Minute, -1000, 1000)
	now := time.Now()

	c.Recalculate(10, 12, now) // err=2, no interval yet
	out := c.Recalculate(10, 12, now.Add(10*time.Second))

	// One 10 s interval weighted by the newer error.
	assert.Equal(t, 20.0, out)
	assert.Equal(t, 2, c.HistoryLen())
}

func TestRecalculate_IntegralWindowExpiry(t *testing.T) {
	c := New(0, 1.0, 0, 30*time.Second, -1000, 1000)
	now := time.Now()

	c.Recalculate(10, 12, now)
	c.Recalculate(10, 12, now.Add(10*time.Second))
	assert.Equal(t, 2, c.HistoryLen())

	// A call a minute later expires both earlier entries.
	out := c.Recalculate(10, 12, now.Add(70*time.Second))
	assert.Equal(t, 1, c.HistoryLen())
	assert.Equal(t, 0.0, out)
}

func TestRecalculate_Derivative(t *testing.T) {
	c := New(0, 0, 1.0, 5*time.Minute, -1000, 1000)
	now := time.Now()

	c.Recalculate(10, 12, now) // err=2
	// err rises to 4 over 2 s: slope 1.0
	out := c.Recalculate(8, 12, now.Add(2*time.Second))
	assert.InDelta(t, 1.0, out, 1e-9)
	assert.Equal(t, 2*time.Second, c.LastInterval)
}

func TestRecalculate_SameTimestampIsStable(t *testing.T) {
	c := New(3.0, 0.02, 200.0, 5*time.Minute, 10, 100)
	now := time.Now()

	c.Recalculate(20, 25, now)
	first := c.Recalculate(20, 25, now.Add(30*time.Second))
	// A duplicate timestamp adds zero integral weight and a guarded
	// derivative, so the output does not change.
	second := c.Recalculate(20, 25, now.Add(30*time.Second))
	assert.Equal(t, first, second)
}

func TestRecalculate_Clamping(t *testing.T) {
	c := New(100.0, 0, 0, 5*time.Minute, 10, 100)
	now := time.Now()

	assert.Equal(t, 100.0, c.Recalculate(0, 50, now))
	assert.Equal(t, 10.0, c.Recalculate(50, 50, now.Add(time.Second)))
	assert.Equal(t, 10.0, c.Recalculate(60, 50, now.Add(2*time.Second)))
}

func TestReset(t *testing.T) {
	c := New(1, 1, 1, 5*time.Minute, -100, 100)
	now := time.Now()
	c.Recalculate(10, 12, now)
	c.Recalculate(10, 12, now.Add(time.Second))

	c.Reset()
	assert.Equal(t, 0, c.HistoryLen())
	assert.Equal(t, 0.0, c.Pval)
	assert.Equal(t, 0.0, c.Ival)
	assert.Equal(t, 0.0, c.Dval)

	// After a reset the next call behaves like the first.
	out := c.Recalculate(10, 12, now.Add(2*time.Second))
	assert.Equal(t, 1.0*2, out)
}
