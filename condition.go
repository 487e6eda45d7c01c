package operations

import (
	"context"
	"sync"
)

// resultKind is the three-way outcome of evaluating a Condition.
type resultKind int

const (
	kindIgnored resultKind = iota
	kindSatisfied
	kindFailed
)

// ConditionResult is the outcome of evaluating a Condition: satisfied,
// failed(error), or ignored.
type ConditionResult struct {
	kind resultKind
	err  error
}

// Satisfied reports a condition that passed.
func Satisfied() ConditionResult { return ConditionResult{kind: kindSatisfied} }

// Failed reports a condition that did not pass, carrying the reason.
func Failed(err error) ConditionResult { return ConditionResult{kind: kindFailed, err: err} }

// Ignored reports a condition that declined to gate execution either way.
func Ignored() ConditionResult { return ConditionResult{kind: kindIgnored} }

func (r ConditionResult) IsSatisfied() bool { return r.kind == kindSatisfied }
func (r ConditionResult) IsFailed() bool    { return r.kind == kindFailed }
func (r ConditionResult) IsIgnored() bool   { return r.kind == kindIgnored }
func (r ConditionResult) Err() error        { return r.err }

// Condition is a pre-flight predicate evaluated, asynchronously, as an
// operation in its own right. It is owned by the target operation it is
// attached to (via Operation.AddCondition) until that operation finishes.
type Condition interface {
	Operation

	// MutuallyExclusive reports whether this condition's Category should
	// be registered with the process-wide ExclusivityManager.
	MutuallyExclusive() bool
	// Category defaults to the condition's symbolic type name.
	Category() string
	// OperationDependencies returns the auxiliary "indirect" operations
	// this condition needs to have run before it can be evaluated.
	OperationDependencies() []Operation
	// Evaluate runs the condition's predicate against target and returns
	// the outcome. Called by the synthesized evaluator operation; also
	// records the result for later inspection via Result.
	Evaluate(ctx context.Context, target Operation) ConditionResult
	// Result returns the most recent outcome of Evaluate, or the zero
	// value (Ignored) if it has not run yet.
	Result() ConditionResult
}

// builtinCondition backs TrueCondition, FalseCondition, BlockCondition and
// NoFailedDependenciesCondition, and is the inner Core of ComposedCondition.
type builtinCondition struct {
	*Core
	mutuallyExclusive bool
	category          string
	deps              []Operation
	evalFn            func(ctx context.Context, target Operation) ConditionResult

	mu     sync.Mutex
	result ConditionResult
}

func newBuiltinCondition(name string, mutuallyExclusive bool, category string, deps []Operation, evalFn func(context.Context, Operation) ConditionResult) *builtinCondition {
	bc := &builtinCondition{
		mutuallyExclusive: mutuallyExclusive,
		category:          category,
		deps:              deps,
		evalFn:            evalFn,
	}
	bc.Core = NewCore(name, nil) // lifecycle driven externally by the evaluator, see Evaluate
	return bc
}

var _ Condition = (*builtinCondition)(nil)

func (bc *builtinCondition) MutuallyExclusive() bool            { return bc.mutuallyExclusive }
func (bc *builtinCondition) Category() string                   { return bc.category }
func (bc *builtinCondition) OperationDependencies() []Operation { return append([]Operation(nil), bc.deps...) }

func (bc *builtinCondition) Evaluate(ctx context.Context, target Operation) ConditionResult {
	res := bc.evalFn(ctx, target)
	bc.mu.Lock()
	bc.result = res
	bc.mu.Unlock()
	return res
}

func (bc *builtinCondition) Result() ConditionResult {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.result
}

// TrueCondition always evaluates to satisfied.
func TrueCondition() Condition {
	return newBuiltinCondition("TrueCondition", false, "TrueCondition", nil,
		func(context.Context, Operation) ConditionResult { return Satisfied() })
}

// FalseCondition always evaluates to failed(ErrFalseCondition).
func FalseCondition() Condition {
	return newBuiltinCondition("FalseCondition", false, "FalseCondition", nil,
		func(context.Context, Operation) ConditionResult { return Failed(ErrFalseCondition) })
}

// BlockCondition evaluates to satisfied iff predicate returns true, else
// failed(ErrBlockFailed).
func BlockCondition(predicate func(ctx context.Context, target Operation) bool) Condition {
	return newBuiltinCondition("BlockCondition", false, "BlockCondition", nil,
		func(ctx context.Context, target Operation) ConditionResult {
			if predicate(ctx, target) {
				return Satisfied()
			}
			return Failed(ErrBlockFailed)
		})
}

// NoFailedDependenciesCondition inspects the target operation's direct
// dependencies at evaluation time. If any is cancelled, it fails with
// ErrCancelledDependencies; else if any failed, it fails with
// ErrFailedDependencies; else it is satisfied. A target with zero
// dependencies is satisfied. It walks into GroupOperation dependencies via
// their ordinary Failed() method, since GroupOperation reports Failed()
// from its accumulated fatal errors.
func NoFailedDependenciesCondition() Condition {
	return newBuiltinCondition("NoFailedDependencies", false, "NoFailedDependencies", nil,
		func(_ context.Context, target Operation) ConditionResult {
			for _, dep := range target.Dependencies() {
				if dep.Cancelled() {
					return Failed(ErrCancelledDependencies)
				}
			}
			for _, dep := range target.Dependencies() {
				if dep.Failed() {
					return Failed(ErrFailedDependencies)
				}
			}
			return Satisfied()
		})
}

// composedCondition wraps another Condition, inheriting its mutual-exclusion
// flag, category and (unless silenced) its indirect dependencies, and
// transforming its Result.
type composedCondition struct {
	*Core
	inner     Condition
	transform func(ConditionResult) ConditionResult
	silent    bool

	mu     sync.Mutex
	result ConditionResult
}

var _ Condition = (*composedCondition)(nil)

func newComposed(inner Condition, transform func(ConditionResult) ConditionResult, silent bool) *composedCondition {
	return &composedCondition{
		Core:      NewCore("Composed("+inner.Name()+")", nil),
		inner:     inner,
		transform: transform,
		silent:    silent,
	}
}

// ComposedCondition wraps inner, passing its Result through unchanged; it
// exists as the base for Negated and Silent, and as a building block for
// custom decorating conditions.
func ComposedCondition(inner Condition) Condition {
	return newComposed(inner, func(r ConditionResult) ConditionResult { return r }, false)
}

// Negated inverts inner's Result: satisfied becomes
// failed(ErrRequirementNotSatisfied), and failed becomes satisfied.
// Ignored passes through unchanged.
func Negated(inner Condition) Condition {
	return newComposed(inner, func(r ConditionResult) ConditionResult {
		switch {
		case r.IsSatisfied():
			return Failed(ErrRequirementNotSatisfied)
		case r.IsFailed():
			return Satisfied()
		default:
			return r
		}
	}, false)
}

// Silent wraps inner but drops its indirect dependencies, so the condition
// still gates execution but contributes no auxiliary operations to the
// queue's admission algorithm.
func Silent(inner Condition) Condition {
	return newComposed(inner, func(r ConditionResult) ConditionResult { return r }, true)
}

func (c *composedCondition) MutuallyExclusive() bool { return c.inner.MutuallyExclusive() }
func (c *composedCondition) Category() string        { return c.inner.Category() }

func (c *composedCondition) OperationDependencies() []Operation {
	if c.silent {
		return nil
	}
	own := c.Core.Dependencies()
	return append(own, c.inner.OperationDependencies()...)
}

// Evaluate drives the wrapped condition's own lifecycle (it is not itself
// present in the target's Conditions() list, so nothing else would) and
// transforms its Result.
func (c *composedCondition) Evaluate(ctx context.Context, target Operation) ConditionResult {
	ic := c.inner.core()
	ic.state.advance(StateExecuting)
	ic.bus.fireWillExecute(ic)
	res := c.inner.Evaluate(ctx, target)
	var errs []error
	if res.IsFailed() {
		errs = []error{res.Err()}
	}
	ic.finish(errs)

	out := c.transform(res)
	c.mu.Lock()
	c.result = out
	c.mu.Unlock()
	return out
}

func (c *composedCondition) Result() ConditionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// evaluator is the internal operation synthesized per target to run its
// attached conditions and aggregate their failures.
type evaluator struct {
	*Core
	target Operation
}

func newEvaluator(target Operation) *evaluator {
	e := &evaluator{target: target}
	e.Core = NewCore("ConditionEvaluator("+target.Name()+")", e.run)
	return e
}

func (e *evaluator) run(_ *Core, finish func(errs []error)) {
	conds := e.target.Conditions()
	if len(conds) == 0 {
		finish(nil)
		return
	}

	ctx := context.Background()
	results := make([]ConditionResult, len(conds))
	var wg sync.WaitGroup
	wg.Add(len(conds))
	for i, cond := range conds {
		go func(i int, cond Condition) {
			defer wg.Done()
			cc := cond.core()
			cc.state.advance(StateExecuting)
			cc.bus.fireWillExecute(cc)
			res := cond.Evaluate(ctx, e.target)
			var errs []error
			if res.IsFailed() {
				errs = []error{res.Err()}
			}
			cc.finish(errs)
			results[i] = res
		}(i, cond)
	}
	wg.Wait()

	var failures []error
	for _, r := range results {
		if r.IsFailed() {
			failures = append(failures, r.Err())
		}
	}
	finish(failures)
}
