package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeObservers_FiresAllInOrder(t *testing.T) {
	var order []string
	a := Observer{WillExecute: func(Operation) { order = append(order, "a") }}
	b := Observer{WillExecute: func(Operation) { order = append(order, "b") }}

	composed := ComposeObservers(a, b)

	op := NewBasicOperation("t", func(_ *Core, finish func([]error)) { finish(nil) })
	op.AddObserver(composed)
	op.core().markSubmitted()
	op.core().willExecute()

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestObserver_DidAttachFiresOnRegistration(t *testing.T) {
	op := NewBasicOperation("t", nil)
	var attached bool
	op.AddObserver(Observer{DidAttach: func(Operation) { attached = true }})
	assert.True(t, attached)
}

func TestObserver_NilCallbacksAreSkipped(t *testing.T) {
	op := NewBasicOperation("t", func(_ *Core, finish func([]error)) { finish(nil) })
	op.AddObserver(Observer{})
	op.core().markSubmitted()
	op.core().willExecute()
	assert.True(t, op.Succeeded())
}
