package operations

import (
	"math"
	"time"
)

// Clock is the timebase consumed by the From delay strategy. Tests
// substitute a fake Clock to drive delay strategies deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// DelayStrategy computes how long to wait before the next attempt, given
// the (1-indexed) attempt number that is about to run.
type DelayStrategy interface {
	Delay(attempt int) time.Duration
}

// DelayFunc adapts a plain function to a DelayStrategy, mirroring the
// Custom(n -> seconds) strategy of the spec.
type DelayFunc func(attempt int) time.Duration

// Delay calls f.
func (f DelayFunc) Delay(attempt int) time.Duration { return f(attempt) }

// Immediate never delays.
func Immediate() DelayStrategy { return DelayFunc(func(int) time.Duration { return 0 }) }

// Fixed delays by a constant duration on every attempt.
func Fixed(d time.Duration) DelayStrategy {
	return DelayFunc(func(int) time.Duration { return d })
}

// From delays until the given deadline, clamped to zero if the deadline has
// already passed.
func From(deadline time.Time, clock Clock) DelayStrategy {
	if clock == nil {
		clock = SystemClock{}
	}
	return DelayFunc(func(int) time.Duration {
		d := deadline.Sub(clock.Now())
		if d < 0 {
			return 0
		}
		return d
	})
}

// Exponential delays base*factor^(attempt-1), saturating at maxDelay (or,
// when maxDelay <= 0, at the largest time.Duration) rather than overflowing
// time.Duration for large attempt counts.
func Exponential(base time.Duration, factor float64, maxDelay time.Duration) DelayStrategy {
	return DelayFunc(func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := float64(base)
		for i := 1; i < attempt; i++ {
			d *= factor
			if maxDelay > 0 && d >= float64(maxDelay) {
				return maxDelay
			}
		}
		if d >= math.MaxInt64 {
			if maxDelay > 0 {
				return maxDelay
			}
			return time.Duration(math.MaxInt64)
		}
		if maxDelay > 0 && time.Duration(d) > maxDelay {
			return maxDelay
		}
		return time.Duration(d)
	})
}

// Custom wraps an arbitrary attempt->duration function as a DelayStrategy.
func Custom(fn func(attempt int) time.Duration) DelayStrategy { return DelayFunc(fn) }
