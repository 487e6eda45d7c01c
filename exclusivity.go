package operations

import (
	"sync"

	"golang.org/x/exp/slices"
)

// ExclusivityManager is the process-wide mutual-exclusion registry: a
// mapping from category to the FIFO of operations currently holding or
// awaiting that category. At most one operation per category is ever
// executing at a time, provided every acquirer makes itself depend on the
// previous holder returned by Acquire (the Queue admission algorithm does
// this automatically for conditions flagged MutuallyExclusive). Access is
// serialized by a single mutex, playing the role the spec assigns to a
// dedicated serial dispatcher — release ordering with respect to a
// subsequent acquire for the same category is preserved because both hold
// the same lock.
type ExclusivityManager struct {
	mu         sync.Mutex
	categories map[string][]Operation
}

// NewExclusivityManager constructs an independent registry. Most programs
// use DefaultExclusivityManager instead; this constructor exists for tests
// and for callers that want isolated exclusivity domains (e.g. per-test, or
// per-tenant in a multi-tenant host process).
func NewExclusivityManager() *ExclusivityManager {
	return &ExclusivityManager{categories: make(map[string][]Operation)}
}

var defaultExclusivityManager = NewExclusivityManager()

// DefaultExclusivityManager returns the process-wide singleton consulted by
// Queue when admitting operations with mutually-exclusive conditions.
func DefaultExclusivityManager() *ExclusivityManager { return defaultExclusivityManager }

// ResetDefaultExclusivityManager clears the process-wide singleton's state.
// Test-only teardown hook; never call this from production code while other
// operations may still be relying on the registry.
func ResetDefaultExclusivityManager() {
	defaultExclusivityManager.mu.Lock()
	defaultExclusivityManager.categories = make(map[string][]Operation)
	defaultExclusivityManager.mu.Unlock()
}

// Acquire appends op to category's FIFO and returns the prior tail, if any,
// which the caller must add as a dependency of op. It also registers a
// DidFinish observer on op that releases the slot, so Release need not be
// called explicitly by well-behaved callers (the Queue admission algorithm
// relies on exactly this).
func (m *ExclusivityManager) Acquire(op Operation, category string) (previous Operation) {
	m.mu.Lock()
	list := m.categories[category]
	if len(list) > 0 {
		previous = list[len(list)-1]
	}
	m.categories[category] = append(list, op)
	m.mu.Unlock()

	op.AddObserver(Observer{
		DidFinish: func(o Operation, _ []error) { m.Release(o, category) },
	})
	return previous
}

// Release removes op from category's FIFO. Idempotent: releasing an
// operation not present, or releasing twice, is a no-op.
func (m *ExclusivityManager) Release(op Operation, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.categories[category]
	if i := slices.Index(list, op); i >= 0 {
		m.categories[category] = slices.Delete(list, i, i+1)
	}
}

// Holders returns a snapshot of the current FIFO for category, for debug
// dumps and tests.
func (m *ExclusivityManager) Holders(category string) []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.categories[category]
	out := make([]Operation, len(list))
	copy(out, list)
	return out
}
