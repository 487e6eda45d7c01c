package operations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitCondition_AllowsThenBlocks(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 1)
	cond := RateLimitCondition(limiter, "widgets")

	res := cond.Evaluate(nil, nil)
	assert.True(t, res.IsSatisfied())

	res = cond.Evaluate(nil, nil)
	assert.True(t, res.IsFailed())
	assert.True(t, errors.Is(res.Err(), ErrRateLimited))
}

func TestRateLimitCondition_SeparateCategoriesIndependent(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 1)
	a := RateLimitCondition(limiter, "a")
	b := RateLimitCondition(limiter, "b")

	assert.True(t, a.Evaluate(nil, nil).IsSatisfied())
	assert.True(t, b.Evaluate(nil, nil).IsSatisfied())
}

func TestRateLimitCondition_GatesOperationViaQueue(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 1)

	q := NewQueue()
	first := NewBasicOperation("first", func(_ *Core, finish func([]error)) { finish(nil) })
	first.AddCondition(RateLimitCondition(limiter, "shared"))
	q.Add(first)
	q.Wait()
	assert.True(t, first.Succeeded())

	second := NewBasicOperation("second", func(_ *Core, finish func([]error)) { finish(nil) })
	second.AddCondition(RateLimitCondition(limiter, "shared"))
	q.Add(second)
	q.Wait()
	assert.True(t, second.Failed())
}
