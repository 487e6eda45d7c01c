package operations

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-microbatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationBatcher_SubmitAdmitsViaQueue(t *testing.T) {
	q := NewQueue()
	ob := NewOperationBatcher(q, &microbatch.BatcherConfig{MaxSize: 2, FlushInterval: 20 * time.Millisecond})
	defer ob.Close()

	var ran int
	a := NewBasicOperation("a", func(_ *Core, finish func([]error)) { ran++; finish(nil) })
	b := NewBasicOperation("b", func(_ *Core, finish func([]error)) { ran++; finish(nil) })

	require.NoError(t, ob.Submit(context.Background(), a))
	require.NoError(t, ob.Submit(context.Background(), b))

	require.Eventually(t, func() bool {
		return a.State() == StateFinished && b.State() == StateFinished
	}, time.Second, time.Millisecond)

	assert.True(t, a.Succeeded())
	assert.True(t, b.Succeeded())
}

func TestOperationBatcher_FlushIntervalAdmitsPartialBatch(t *testing.T) {
	q := NewQueue()
	ob := NewOperationBatcher(q, &microbatch.BatcherConfig{MaxSize: 16, FlushInterval: 10 * time.Millisecond})
	defer ob.Close()

	op := NewBasicOperation("solo", func(_ *Core, finish func([]error)) { finish(nil) })
	require.NoError(t, ob.Submit(context.Background(), op))

	require.Eventually(t, func() bool {
		return op.State() == StateFinished
	}, time.Second, time.Millisecond)
	assert.True(t, op.Succeeded())
}
