package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusivityManager_AcquireReturnsPreviousHolder(t *testing.T) {
	mgr := NewExclusivityManager()
	a := NewBasicOperation("a", nil)
	b := NewBasicOperation("b", nil)

	prev := mgr.Acquire(a, "cat")
	assert.Nil(t, prev)

	prev = mgr.Acquire(b, "cat")
	assert.Equal(t, Operation(a), prev)

	require.Len(t, mgr.Holders("cat"), 2)
}

func TestExclusivityManager_ReleaseOnDidFinish(t *testing.T) {
	mgr := NewExclusivityManager()
	a := NewBasicOperation("a", func(_ *Core, finish func([]error)) { finish(nil) })

	mgr.Acquire(a, "cat")
	a.core().markSubmitted()
	a.core().willExecute()

	assert.Empty(t, mgr.Holders("cat"))
}

func TestExclusivityManager_ReleaseIsIdempotent(t *testing.T) {
	mgr := NewExclusivityManager()
	a := NewBasicOperation("a", nil)
	mgr.Acquire(a, "cat")
	mgr.Release(a, "cat")
	mgr.Release(a, "cat")
	assert.Empty(t, mgr.Holders("cat"))
}
