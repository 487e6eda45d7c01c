package operations

import (
	"context"
	"errors"
	"time"

	"github.com/joeycumines/go-catrate"
)

// ErrRateLimited is returned by RateLimitCondition when the category's
// sliding-window budget is currently exhausted.
var ErrRateLimited = errors.New("operations: rate limit exceeded")

// RateLimitCondition gates an operation on a shared catrate.Limiter: the
// condition is satisfied only if calling Limiter.Allow(category) admits the
// event. Unlike the block/predicate conditions, it is inherently stateful
// across evaluations of the same category, which is why it is built on a
// dedicated limiter rather than a plain BlockCondition closure.
//
// Multiple operations sharing the same category and Limiter are throttled
// together; pass DefaultExclusivityManager-style shared instances to rate
// limit across an entire queue, or a fresh *catrate.Limiter to scope the
// budget to a single operation family.
func RateLimitCondition(limiter *catrate.Limiter, category string) Condition {
	return newBuiltinCondition("RateLimit("+category+")", false, "RateLimit:"+category, nil,
		func(_ context.Context, _ Operation) ConditionResult {
			if _, ok := limiter.Allow(category); !ok {
				return Failed(ErrRateLimited)
			}
			return Satisfied()
		})
}

// NewRateLimiter constructs a catrate.Limiter with a single window, the
// common case of "at most n events per interval". For multiple simultaneous
// windows (e.g. 10/second and 100/minute), build a *catrate.Limiter directly
// with catrate.NewLimiter and share it across multiple RateLimitCondition
// calls.
func NewRateLimiter(interval time.Duration, n int) *catrate.Limiter {
	return catrate.NewLimiter(map[time.Duration]int{interval: n})
}
