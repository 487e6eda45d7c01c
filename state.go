package operations

import "sync/atomic"

// State is a stage in an Operation's lifecycle. State advances monotonically
// along the order below; no state is ever revisited.
type State int32

const (
	StateInitialized State = iota
	StatePending
	StateEvaluatingConditions
	StateReady
	StateExecuting
	StateFinishing
	StateFinished
)

// String renders the state for logging and debug dumps.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StatePending:
		return "pending"
	case StateEvaluatingConditions:
		return "evaluatingConditions"
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StateFinishing:
		return "finishing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// fastState is a lock-free state cell guarding an Operation's lifecycle
// stage with a single atomic word, modelled on the event-loop runtime's
// atomic CAS state machine (no mutex, cache-line concerns aside since an
// Operation's state is read far more often than it's written, but
// contention is never across a hot loop the way a poller's is).
type fastState struct {
	v atomic.Int32
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(int32(StateInitialized))
	return s
}

// load returns the current state.
func (s *fastState) load() State { return State(s.v.Load()) }

// advance unconditionally moves the state forward, without verifying
// monotonicity (callers only ever call it with a higher stage; tests assert
// monotonicity as an invariant rather than this type enforcing it at
// runtime, matching the "trusts the stored value" performance posture of
// the atomic state primitive it's grounded on).
func (s *fastState) advance(to State) { s.v.Store(int32(to)) }

// tryAdvance CAS-transitions from `from` to `to`, returning whether it won.
func (s *fastState) tryAdvance(from, to State) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}
