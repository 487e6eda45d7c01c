package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastState_LoadAdvance(t *testing.T) {
	s := newFastState()
	assert.Equal(t, StateInitialized, s.load())

	s.advance(StatePending)
	assert.Equal(t, StatePending, s.load())
}

func TestFastState_TryAdvance(t *testing.T) {
	s := newFastState()
	s.advance(StatePending)

	assert.False(t, s.tryAdvance(StateReady, StateExecuting))
	assert.Equal(t, StatePending, s.load())

	assert.True(t, s.tryAdvance(StatePending, StateReady))
	assert.Equal(t, StateReady, s.load())
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateInitialized:         "initialized",
		StatePending:              "pending",
		StateEvaluatingConditions: "evaluatingConditions",
		StateReady:                "ready",
		StateExecuting:            "executing",
		StateFinishing:            "finishing",
		StateFinished:             "finished",
		State(99):                 "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
