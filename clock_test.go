package operations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestImmediate(t *testing.T) {
	assert.Zero(t, Immediate().Delay(1))
	assert.Zero(t, Immediate().Delay(100))
}

func TestFixed(t *testing.T) {
	d := Fixed(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, d.Delay(1))
	assert.Equal(t, 50*time.Millisecond, d.Delay(9))
}

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

func TestFrom(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := fakeClock{now: now}

	future := From(now.Add(10*time.Second), clock)
	assert.Equal(t, 10*time.Second, future.Delay(1))

	past := From(now.Add(-10*time.Second), clock)
	assert.Zero(t, past.Delay(1))
}

func TestExponential(t *testing.T) {
	strategy := Exponential(100*time.Millisecond, 2, time.Second)
	assert.Equal(t, 100*time.Millisecond, strategy.Delay(1))
	assert.Equal(t, 200*time.Millisecond, strategy.Delay(2))
	assert.Equal(t, 400*time.Millisecond, strategy.Delay(3))
	assert.Equal(t, time.Second, strategy.Delay(10))
}

func TestCustom(t *testing.T) {
	d := Custom(func(attempt int) time.Duration { return time.Duration(attempt) * time.Millisecond })
	assert.Equal(t, 5*time.Millisecond, d.Delay(5))
}

func TestSystemClock(t *testing.T) {
	before := time.Now()
	now := SystemClock{}.Now()
	assert.False(t, now.Before(before))
}
