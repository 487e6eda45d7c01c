package operations

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DependencyOrdering(t *testing.T) {
	q := NewQueueWithExclusivity(NewExclusivityManager())

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	a := NewBasicOperation("a", func(_ *Core, finish func([]error)) {
		record("a")
		finish(nil)
	})
	b := NewBasicOperation("b", func(_ *Core, finish func([]error)) {
		record("b")
		finish(nil)
	})
	b.AddDependency(a)

	q.AddAll(a, b)
	q.Wait()

	require.Equal(t, []string{"a", "b"}, order)
}

func TestQueue_FailedDependencyConditionBlocksExecution(t *testing.T) {
	q := NewQueueWithExclusivity(NewExclusivityManager())

	dep := NewBasicOperation("dep", func(_ *Core, finish func([]error)) {
		finish([]error{assertErr("dep failed")})
	})

	var ran bool
	target := NewBasicOperation("target", func(_ *Core, finish func([]error)) {
		ran = true
		finish(nil)
	})
	target.AddDependency(dep)
	target.AddCondition(NoFailedDependenciesCondition())

	q.AddAll(dep, target)
	q.Wait()

	assert.False(t, ran)
	assert.True(t, target.Failed())
	require.Len(t, target.Errors(), 1)
	assert.ErrorIs(t, target.Errors()[0], ErrFailedDependencies)
}

func TestQueue_MutualExclusionSerializesCategory(t *testing.T) {
	q := NewQueueWithExclusivity(NewExclusivityManager())

	var active atomic.Int32
	var maxActive atomic.Int32
	makeOp := func(name string) *Basic {
		op := NewBasicOperation(name, func(_ *Core, finish func([]error)) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			finish(nil)
		})
		op.AddCondition(newExclusiveTestCondition("writer"))
		return op
	}

	ops := []Operation{makeOp("a"), makeOp("b"), makeOp("c")}
	q.AddAll(ops...)
	q.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestQueue_DuplicateSubmissionFinishesWithError(t *testing.T) {
	q := NewQueueWithExclusivity(NewExclusivityManager())

	started := make(chan struct{})
	release := make(chan struct{})
	op := NewBasicOperation("dup", func(_ *Core, finish func([]error)) {
		close(started)
		<-release
		finish(nil)
	})
	defer close(release)

	q.Add(op)
	<-started
	q.Add(op)

	require.Eventually(t, func() bool { return op.State() == StateFinished }, time.Second, time.Millisecond)
	assert.True(t, op.Failed())
	require.NotEmpty(t, op.Errors())
	assert.ErrorIs(t, op.Errors()[0], ErrDuplicateOperation)
}

func TestQueue_SuspendBlocksReadyOperations(t *testing.T) {
	q := NewQueueWithExclusivity(NewExclusivityManager())
	q.Suspend()

	var ran atomic.Bool
	op := NewBasicOperation("t", func(_ *Core, finish func([]error)) {
		ran.Store(true)
		finish(nil)
	})
	q.Add(op)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())

	q.Resume()
	q.Wait()
	assert.True(t, ran.Load())
}

// exclusiveTestCondition is a minimal MutuallyExclusive condition usable
// without touching the CLI demo's.
type exclusiveTestCondition struct {
	Condition
	category string
}

func newExclusiveTestCondition(category string) exclusiveTestCondition {
	return exclusiveTestCondition{
		Condition: TrueCondition(),
		category:  category,
	}
}

func (e exclusiveTestCondition) MutuallyExclusive() bool { return true }
func (e exclusiveTestCondition) Category() string        { return e.category }
