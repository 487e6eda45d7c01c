package operations

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Delegate receives Queue-wide lifecycle notifications. Any field may be
// nil.
type Delegate struct {
	WillAdd     func(q *Queue, op Operation)
	WillFinish  func(q *Queue, op Operation, errs []error)
	DidFinish   func(q *Queue, op Operation, errs []error)
	WillProduce func(q *Queue, parent, child Operation)
}

// Queue is the adapter between user-submitted operations and the shared
// worker pool: it installs bookkeeping observers, resolves conditions and
// mutual exclusion (via the synthesized evaluator and the
// ExclusivityManager), and dispatches ready operations for execution.
type Queue struct {
	Delegate Delegate

	// MaxConcurrent bounds how many of this queue's operations may execute
	// at once; 0 means unbounded (subject only to the shared dispatcher's
	// own limit). It is a quality-of-service hint, not a hard scheduling
	// guarantee beyond what the underlying errgroup.Group enforces. Set it
	// through SetMaxConcurrent; assigning the field directly does not change
	// the limit.
	MaxConcurrent int

	// QoS is this queue's default quality-of-service hint.
	QoS QoS

	exclusivity *ExclusivityManager

	mu        sync.Mutex
	suspended bool
	resumeCh  chan struct{} // closed and replaced on Resume; nil while not suspended
	seen      map[Operation]bool
	group     *errgroup.Group
	wg        sync.WaitGroup
}

// NewQueue constructs a Queue backed by the process-wide ExclusivityManager.
func NewQueue() *Queue {
	return NewQueueWithExclusivity(DefaultExclusivityManager())
}

// NewQueueWithExclusivity constructs a Queue using a specific
// ExclusivityManager, for tests that want an isolated exclusivity domain.
func NewQueueWithExclusivity(mgr *ExclusivityManager) *Queue {
	g := &errgroup.Group{}
	return &Queue{
		exclusivity: mgr,
		seen:        make(map[Operation]bool),
		group:       g,
	}
}

// SetMaxConcurrent bounds how many of this queue's operations may execute
// at once; n <= 0 removes the bound. Call before the first Add:
// errgroup.Group.SetLimit panics if the limit is changed while any of this
// queue's operations are executing.
func (q *Queue) SetMaxConcurrent(n int) {
	q.MaxConcurrent = n
	if n <= 0 {
		n = -1
	}
	q.group.SetLimit(n)
}

// Suspend prevents newly-ready operations from starting execution; already
// executing operations are unaffected.
func (q *Queue) Suspend() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.suspended {
		return
	}
	q.suspended = true
	q.resumeCh = make(chan struct{})
}

// Resume releases operations blocked by Suspend.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.suspended {
		return
	}
	q.suspended = false
	close(q.resumeCh)
	q.resumeCh = nil
}

func (q *Queue) waitWhileSuspended() {
	for {
		q.mu.Lock()
		ch := q.resumeCh
		q.mu.Unlock()
		if ch == nil {
			return
		}
		<-ch
	}
}

// Wait blocks until every operation submitted so far has finished. It does
// not prevent further submissions from extending the wait.
func (q *Queue) Wait() { q.wg.Wait() }

// Add submits op to the queue. The queue never rejects submissions;
// re-adding the same Operation value is detected and reported via
// ErrDuplicateOperation through the DidFinish observer firing immediately,
// rather than by panicking.
func (q *Queue) Add(op Operation) {
	q.mu.Lock()
	if q.seen[op] {
		q.mu.Unlock()
		op.core().finish([]error{ErrDuplicateOperation})
		return
	}
	q.seen[op] = true
	q.mu.Unlock()

	q.admit(op)
}

// AddAll submits every operation in ops.
func (q *Queue) AddAll(ops ...Operation) {
	for _, op := range ops {
		q.Add(op)
	}
}

// admit runs the admission algorithm (spec §4.2) and schedules op.
func (q *Queue) admit(op Operation) {
	cc := op.core()
	cc.attachQueue(q)
	cc.markSubmitted()

	if q.Delegate.WillAdd != nil {
		q.Delegate.WillAdd(q, op)
	}

	op.AddObserver(Observer{
		WillFinish: func(o Operation, errs []error) {
			if q.Delegate.WillFinish != nil {
				q.Delegate.WillFinish(q, o, errs)
			}
		},
		DidFinish: func(o Operation, errs []error) {
			if q.Delegate.DidFinish != nil {
				q.Delegate.DidFinish(q, o, errs)
			}
		},
	})

	origDeps := op.Dependencies()

	conds := op.Conditions()
	var evalOp *evaluator
	if len(conds) > 0 {
		evalOp = newEvaluator(op)
		// The evaluator runs only once op's direct dependencies have
		// finished, so conditions see their final state.
		for _, d := range origDeps {
			evalOp.AddDependency(d)
		}

		var previousHolders []Operation
		for _, cond := range conds {
			if cond.MutuallyExclusive() {
				if prev := q.exclusivity.Acquire(op, cond.Category()); prev != nil {
					previousHolders = append(previousHolders, prev)
				}
			}
		}

		indirectSeen := make(map[Operation]bool)
		for _, cond := range conds {
			for _, indirect := range cond.OperationDependencies() {
				if indirectSeen[indirect] {
					continue
				}
				indirectSeen[indirect] = true

				for _, prev := range previousHolders {
					indirect.AddDependency(prev)
				}
				for _, d := range origDeps {
					indirect.AddDependency(d)
				}
				evalOp.AddDependency(indirect)
				q.admit(indirect)
			}
		}

		for _, prev := range previousHolders {
			evalOp.AddDependency(prev)
		}

		op.AddDependency(evalOp)
	}

	q.wg.Add(1)
	go q.schedule(op, origDeps, evalOp)

	if evalOp != nil {
		q.wg.Add(1)
		go q.schedule(evalOp, evalOp.Dependencies(), nil)
	}
}

// schedule waits for origDeps (op's dependencies as they stood before the
// admission algorithm injected the evaluator) to finish, transitions to
// evaluatingConditions if op has conditions and waits for evalOpSelf, then
// dispatches op for execution. evalOpSelf is nil when scheduling the
// evaluator operation itself (which has no conditions of its own).
func (q *Queue) schedule(op Operation, origDeps []Operation, evalOpSelf *evaluator) {
	defer q.wg.Done()
	cc := op.core()

	if cc.Cancelled() {
		return
	}

	for _, dep := range origDeps {
		<-dep.core().done
	}

	if cc.Cancelled() {
		return
	}

	if evalOpSelf != nil {
		cc.state.tryAdvance(StatePending, StateEvaluatingConditions)

		<-evalOpSelf.done

		if cc.Cancelled() {
			return
		}

		// If the evaluator failed, op must not become ready or execute;
		// it finishes directly with the evaluator's errors.
		if evalOpSelf.Failed() {
			cc.finish(evalOpSelf.Errors())
			return
		}
	}

	if !cc.state.tryAdvance(StatePending, StateReady) {
		cc.state.tryAdvance(StateEvaluatingConditions, StateReady)
	}
	if cc.Cancelled() {
		return
	}

	q.waitWhileSuspended()
	if cc.Cancelled() {
		return
	}

	q.group.Go(func() error {
		cc.willExecute()
		return nil
	})

	// Hold this schedule goroutine (and so q.wg's count for op) open until
	// op has actually finished, not merely been dispatched — otherwise
	// Queue.Wait could return while op (or a child it goes on to Produce)
	// is still executing.
	<-cc.done
}

// routeProduced is called by a running operation's Produce; it implements
// the queue's producer-router observer (installed conceptually on every
// submission per spec §4.2 step 1) by directly admitting the child.
func (q *Queue) routeProduced(parent, child Operation) {
	if q.Delegate.WillProduce != nil {
		q.Delegate.WillProduce(q, parent, child)
	}
	q.Add(child)
}
