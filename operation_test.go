package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicOperation_RunsAndFinishes(t *testing.T) {
	var ran bool
	op := NewBasicOperation("t", func(_ *Core, finish func([]error)) {
		ran = true
		finish(nil)
	})

	require.Equal(t, StateInitialized, op.State())
	op.core().markSubmitted()
	op.core().willExecute()

	assert.True(t, ran)
	assert.Equal(t, StateFinished, op.State())
	assert.True(t, op.Succeeded())
	assert.False(t, op.Failed())
}

func TestBasicOperation_FinishWithErrors(t *testing.T) {
	boom := assertErr("boom")
	op := NewBasicOperation("t", func(_ *Core, finish func([]error)) {
		finish([]error{boom})
	})
	op.core().markSubmitted()
	op.core().willExecute()

	assert.True(t, op.Failed())
	assert.False(t, op.Succeeded())
	require.Len(t, op.Errors(), 1)
	assert.Equal(t, boom, op.Errors()[0])
}

func TestCore_CancelBeforeExecuteSkipsRun(t *testing.T) {
	var ran bool
	op := NewBasicOperation("t", func(_ *Core, finish func([]error)) {
		ran = true
		finish(nil)
	})
	op.core().markSubmitted()
	op.Cancel()

	assert.False(t, ran)
	assert.True(t, op.Cancelled())
	assert.Equal(t, StateFinished, op.State())
}

func TestCore_CancelIsIdempotent(t *testing.T) {
	op := NewBasicOperation("t", nil)
	op.core().markSubmitted()

	var fires int
	op.AddObserver(Observer{WillCancel: func(Operation, []error) { fires++ }})

	op.Cancel()
	op.Cancel()
	op.Cancel()

	assert.Equal(t, 1, fires)
}

func TestCore_ObserverOrdering(t *testing.T) {
	var events []string
	op := NewBasicOperation("t", func(_ *Core, finish func([]error)) { finish(nil) })
	op.AddObserver(Observer{
		WillExecute: func(Operation) { events = append(events, "willExecute") },
		WillFinish:  func(Operation, []error) { events = append(events, "willFinish") },
		DidFinish:   func(Operation, []error) { events = append(events, "didFinish") },
	})
	op.core().markSubmitted()
	op.core().willExecute()

	assert.Equal(t, []string{"willExecute", "willFinish", "didFinish"}, events)
}

func TestCore_Produce_RoutesToQueue(t *testing.T) {
	q := NewQueueWithExclusivity(NewExclusivityManager())
	var childRan bool
	child := NewBasicOperation("child", func(_ *Core, finish func([]error)) {
		childRan = true
		finish(nil)
	})
	parent := NewBasicOperation("parent", func(op *Core, finish func([]error)) {
		op.Produce(child)
		finish(nil)
	})
	q.Add(parent)
	q.Wait()

	assert.True(t, childRan)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertErr(s string) error { return simpleErr(s) }
