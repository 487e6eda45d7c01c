package operations

import "sync"

// GroupOperation is an operation that additionally owns a private Queue, a
// rotating CanFinish barrier, and a fatal-error accumulator. It finishes
// only once CanFinish and the internal finishing sentinel both resolve —
// the double-barrier design that closes the race between "the last child
// has finished and the barrier is now ready" and "a new child was added
// after the barrier was constructed but before it ran" (spec §4.5/§9).
type GroupOperation struct {
	*Core

	// WillAddChild, if set, is notified synchronously whenever a child is
	// added via AddOperation or via a produced operation. Children passed to
	// NewGroupOperation are wired before this field can be set, so they are
	// not reported to it.
	WillAddChild func(child Operation)

	// WillAttemptRecoveryFromErrors decides, for a child that finished with
	// errors, whether the group should treat those errors as recoverable
	// (true) or fold them into the group's fatal errors (false). The
	// default, if nil, always declines recovery.
	WillAttemptRecoveryFromErrors func(child Operation, errs []error) bool

	// WillFinishOperation is notified whenever a child is about to finish,
	// regardless of whether it errored.
	WillFinishOperation func(child Operation, errs []error)

	innerQueue *Queue

	mu          sync.Mutex
	cond        *sync.Cond
	operations  *Cell[[]Operation]
	fatalErrors []error
	// recovery holds errors a child finished with, for which
	// WillAttemptRecoveryFromErrors returned true. Those errors count as
	// handled and are never folded into fatalErrors; the entries are
	// discarded at the terminal CanFinish round, or earlier by
	// ClearRecovery.
	recovery         map[Operation][]error
	addingCount      int
	canFinish        *Core
	isGroupFinishing bool
}

var _ Operation = (*GroupOperation)(nil)

// NewGroupOperation constructs a group owning children as its initial
// membership. Additional children may be added later via AddOperation, or
// produced at runtime by any child via Operation.Produce.
func NewGroupOperation(children ...Operation) *GroupOperation {
	g := &GroupOperation{
		innerQueue: NewQueue(),
		operations: NewCell[[]Operation](nil),
		recovery:   make(map[Operation][]error),
	}
	g.cond = sync.NewCond(&g.mu)
	g.innerQueue.Delegate.WillProduce = func(_ *Queue, _, child Operation) {
		g.absorbChild(child)
	}
	g.Core = NewCore("Group", g.run)
	for _, c := range children {
		g.wireChild(c)
	}
	g.operations.Update(func(ops []Operation) []Operation {
		return append(ops, children...)
	})
	return g
}

// Operations returns a snapshot of every child this group currently owns:
// its initial membership, anything added via AddOperation, and anything
// produced at runtime by a child.
func (g *GroupOperation) Operations() []Operation {
	return append([]Operation(nil), g.operations.Get()...)
}

// ClearRecovery discards child's stashed recoverable errors ahead of the
// terminal CanFinish round. Stashed errors never become fatal either way.
func (g *GroupOperation) ClearRecovery(child Operation) {
	g.mu.Lock()
	delete(g.recovery, child)
	g.mu.Unlock()
}

// AddOperation adds op as a new child, wiring its lifecycle hooks and
// submitting it to the group's private queue. Safe to call concurrently
// with the group's own CanFinish barrier re-evaluating: the addingCount
// counter makes CanFinish defer until the add completes.
func (g *GroupOperation) AddOperation(op Operation) {
	g.mu.Lock()
	g.addingCount++
	g.mu.Unlock()

	g.wireChild(op)

	g.operations.Update(func(ops []Operation) []Operation {
		return append(ops, op)
	})

	g.mu.Lock()
	if g.canFinish != nil {
		g.canFinish.AddDependency(op)
	}
	g.addingCount--
	if g.addingCount == 0 {
		g.cond.Broadcast()
	}
	g.mu.Unlock()

	if g.Cancelled() {
		op.Cancel()
	}

	g.innerQueue.Add(op)
}

// AddOperations adds every op in ops.
func (g *GroupOperation) AddOperations(ops ...Operation) {
	for _, op := range ops {
		g.AddOperation(op)
	}
}

// absorbChild is the bookkeeping half of adding a child produced at runtime
// by some other child; Queue.routeProduced (via the inner queue's
// WillProduce delegate set in NewGroupOperation) calls this and then admits
// the child itself, so unlike AddOperation this does not call innerQueue.Add.
func (g *GroupOperation) absorbChild(child Operation) {
	g.mu.Lock()
	g.addingCount++
	g.mu.Unlock()

	g.wireChild(child)

	g.operations.Update(func(ops []Operation) []Operation {
		return append(ops, child)
	})

	g.mu.Lock()
	if g.canFinish != nil {
		g.canFinish.AddDependency(child)
	}
	g.addingCount--
	if g.addingCount == 0 {
		g.cond.Broadcast()
	}
	g.mu.Unlock()

	if g.Cancelled() {
		child.Cancel()
	}
}

// wireChild installs the WillFinish/DidFinish hooks described in spec
// §4.5: non-empty WillFinish errors are either stashed as recoverable or
// folded into fatalErrors, and WillFinishOperation is always notified.
func (g *GroupOperation) wireChild(op Operation) {
	if g.WillAddChild != nil {
		g.WillAddChild(op)
	}
	op.AddObserver(Observer{
		WillFinish: func(o Operation, errs []error) {
			if g.WillFinishOperation != nil {
				g.WillFinishOperation(o, errs)
			}
			if len(errs) == 0 {
				return
			}
			recoverable := g.WillAttemptRecoveryFromErrors != nil && g.WillAttemptRecoveryFromErrors(o, errs)
			g.mu.Lock()
			if recoverable {
				g.recovery[o] = errs
			} else {
				g.fatalErrors = append(g.fatalErrors, errs...)
			}
			g.mu.Unlock()
		},
	})
}

// Cancel cancels the group and, per spec §4.5, all of its children.
func (g *GroupOperation) Cancel() { g.CancelWithErrors() }

// CancelWithErrors cancels the group; children are cancelled with a
// ParentCancelledError wrapping errs, if errs is non-empty.
func (g *GroupOperation) CancelWithErrors(errs ...error) {
	g.Core.CancelWithErrors(errs...)
	children := g.operations.Get()
	for _, c := range children {
		if len(errs) > 0 {
			c.CancelWithErrors(&ParentCancelledError{Causes: errs})
		} else {
			c.Cancel()
		}
	}
}

// Debug includes the group's children as SubOperations.
func (g *GroupOperation) Debug() DebugRecord {
	rec := g.Core.Debug()
	for _, c := range g.Operations() {
		rec.SubOperations = append(rec.SubOperations, c.Debug())
	}
	return rec
}

// run is the group's own execute hook: it builds the first CanFinish
// barrier over the initial membership and submits everything to the
// private queue, then returns without calling finish — the group finishes
// later, asynchronously, once finalize observes the terminal CanFinish
// round.
func (g *GroupOperation) run(_ *Core, _ func(errs []error)) {
	initial := g.operations.Get()

	cf := NewCore("CanFinish", g.canFinishRun)
	for _, o := range initial {
		cf.AddDependency(o)
	}
	g.mu.Lock()
	g.canFinish = cf
	g.mu.Unlock()

	for _, o := range initial {
		g.innerQueue.Add(o)
	}
	g.innerQueue.Add(cf)
}

// canFinishRun is CanFinish's body: the rotating rendezvous described in
// spec §4.5. It is installed as the run function of every CanFinish
// instance across the group's lifetime (a fresh *Core each round, since a
// Core finishes at most once).
func (g *GroupOperation) canFinishRun(core *Core, finish func(errs []error)) {
	g.mu.Lock()
	for g.addingCount > 0 {
		g.cond.Wait()
	}
	snapshot := g.operations.Get()
	g.mu.Unlock()

	var unfinished []Operation
	for _, o := range snapshot {
		if o.State() != StateFinished {
			unfinished = append(unfinished, o)
		}
	}

	if len(unfinished) > 0 {
		next := NewCore("CanFinish", g.canFinishRun)
		for _, o := range unfinished {
			next.AddDependency(o)
		}
		g.mu.Lock()
		g.canFinish = next
		g.mu.Unlock()
		g.innerQueue.Add(next)
		finish(nil)
		return
	}

	g.mu.Lock()
	for child := range g.recovery {
		delete(g.recovery, child)
	}
	g.isGroupFinishing = true
	g.mu.Unlock()

	finish(nil)
	g.finalize(core)
}

// finalize constructs the finishing sentinel depending on the just-finished
// terminal CanFinish instance, submits it, and once it completes, finishes
// the group itself with its accumulated fatal errors. It is only ever
// called once, from the terminal round of canFinishRun.
func (g *GroupOperation) finalize(terminalCanFinish *Core) {
	sentinel := NewCore("GroupFinishingSentinel", func(_ *Core, finish func(errs []error)) { finish(nil) })
	sentinel.AddDependency(terminalCanFinish)
	g.innerQueue.Add(sentinel)

	go func() {
		<-sentinel.done
		g.mu.Lock()
		fatal := append([]error(nil), g.fatalErrors...)
		g.mu.Unlock()
		g.Core.finish(fatal)
	}()
}
