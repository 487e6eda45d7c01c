package operations

import (
	"sync"
	"time"
)

// RetryAttempt is one (delay, operation, configure) triple yielded by a
// RetryGenerator: the operation to run next, an optional configuration hook
// applied immediately before it is produced, and an optional explicit delay.
// A zero Delay means "use the RetryOperation's DelayStrategy instead".
type RetryAttempt struct {
	Operation Operation
	Configure func(Operation)
	Delay     time.Duration
}

// RetryGenerator yields the next attempt for a given (1-indexed) attempt
// number, or ok=false once exhausted.
type RetryGenerator func(attempt int) (attempt2 RetryAttempt, ok bool)

// RetryInfo is passed to a RetryPolicyFunc so it can decide whether to
// accept, override, or stop a recommended attempt.
type RetryInfo struct {
	Attempt          int
	Errors           []error
	HistoricalErrors []error
}

// RetryPolicyFunc implements the spec's three-way decision: returning
// (recommended, true) is accept(recommended); returning (override, true) is
// accept(override); returning (_, false) is stop.
type RetryPolicyFunc func(info RetryInfo, recommended RetryAttempt) (chosen RetryAttempt, accept bool)

// RetryOptions configures a RetryOperation. A zero value means: no maximum
// attempt count, no delay strategy (attempts whose RetryAttempt.Delay is
// zero run immediately), and a policy that always accepts the recommended
// attempt.
type RetryOptions struct {
	MaxCount int
	Strategy DelayStrategy
	Policy   RetryPolicyFunc
}

// RetryOperation re-instantiates failed work from a generator, applying a
// delay strategy and policy callback between attempts (spec §4.6). Unlike
// the originating design this is not generic over a payload operation type:
// Go's Operation interface already lets any concrete kind be produced as an
// attempt, so a type parameter would add nothing (documented as a deviation
// in DESIGN.md).
type RetryOperation struct {
	*Core

	generator RetryGenerator
	policy    RetryPolicyFunc
	maxCount  int
	strategy  DelayStrategy

	mu               sync.Mutex
	count            int
	errs             []error
	historicalErrors []error
	current          Operation
}

var _ Operation = (*RetryOperation)(nil)

// NewRetryOperation constructs a RetryOperation driven by generator.
func NewRetryOperation(generator RetryGenerator, opts RetryOptions) *RetryOperation {
	r := &RetryOperation{
		generator: generator,
		policy:    opts.Policy,
		maxCount:  opts.MaxCount,
		strategy:  opts.Strategy,
	}
	r.Core = NewCore("Retry", r.run)
	return r
}

// Count is the number of attempts actually started so far.
func (r *RetryOperation) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// LastErrors returns the most recent attempt's errors.
func (r *RetryOperation) LastErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// HistoricalErrors returns the union of every prior attempt's errors.
func (r *RetryOperation) HistoricalErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.historicalErrors...)
}

// Cancel cancels the retry and, per spec §4.6, its in-flight attempt.
func (r *RetryOperation) Cancel() { r.CancelWithErrors() }

// CancelWithErrors cancels the retry and halts the generator: once
// Cancelled() is observable, no further attempt is started.
func (r *RetryOperation) CancelWithErrors(errs ...error) {
	r.Core.CancelWithErrors(errs...)
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()
	if cur != nil {
		cur.Cancel()
	}
}

func (r *RetryOperation) run(_ *Core, finish func(errs []error)) {
	r.attempt(finish)
}

// attempt drives one round of the algorithm in spec §4.6: consult the
// generator, apply the policy, produce the chosen operation, and wire its
// DidFinish to either finish the retry or recurse into the next attempt.
func (r *RetryOperation) attempt(finish func(errs []error)) {
	if r.Cancelled() {
		finish(r.HistoricalErrors())
		return
	}

	r.mu.Lock()
	attemptNum := r.count + 1
	r.mu.Unlock()

	if r.maxCount > 0 && attemptNum > r.maxCount {
		finish(append(r.HistoricalErrors(), ErrRetryExhausted))
		return
	}

	recommended, ok := r.generator(attemptNum)
	if !ok {
		finish(append(r.HistoricalErrors(), ErrRetryExhausted))
		return
	}

	chosen := recommended
	// The policy gates subsequent attempts only (spec §4.6: consulted "on
	// each child didFinish"); the initial attempt always runs, regardless
	// of what the policy would say, so count is always >= 1.
	if r.policy != nil && attemptNum > 1 {
		info := RetryInfo{
			Attempt:          attemptNum,
			Errors:           r.LastErrors(),
			HistoricalErrors: r.HistoricalErrors(),
		}
		var accept bool
		chosen, accept = r.policy(info, recommended)
		if !accept {
			finish(append(r.HistoricalErrors(), ErrRetryExhausted))
			return
		}
	}

	if chosen.Delay <= 0 && r.strategy != nil {
		chosen.Delay = r.strategy.Delay(attemptNum)
	}
	r.mu.Lock()
	r.count = attemptNum
	r.current = chosen.Operation
	r.mu.Unlock()

	op := chosen.Operation
	op.AddObserver(Observer{
		DidFinish: func(o Operation, errs []error) {
			r.mu.Lock()
			r.current = nil
			r.mu.Unlock()

			if o.Succeeded() {
				finish(nil)
				return
			}

			r.mu.Lock()
			r.errs = append([]error(nil), errs...)
			r.historicalErrors = append(r.historicalErrors, errs...)
			r.mu.Unlock()

			r.attempt(finish)
		},
	})

	produce := func() {
		if chosen.Configure != nil {
			chosen.Configure(op)
		}
		r.Produce(op)
	}
	if chosen.Delay > 0 {
		time.AfterFunc(chosen.Delay, produce)
	} else {
		produce()
	}
}
