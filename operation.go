package operations

import (
	"sync"

	"github.com/google/uuid"
)

// QoS is a quality-of-service hint carried by operations (UserIntent) and
// queues (Queue.QoS). Produce copies the producer's UserIntent onto the
// child at produce time; it is never retroactively adjusted afterwards. It
// carries no scheduling guarantee: the core performs no prioritization
// based on this hint (spec Non-goals).
type QoS int

const (
	QoSDefault QoS = iota
	QoSBackground
	QoSUtility
	QoSUserInitiated
	QoSUserInteractive
)

// Operation is the capability interface satisfied by every unit of work in
// this package: Basic, Condition, the internal evaluator, GroupOperation
// and RetryOperation, each of which embeds *Core and gets these methods by
// promotion. The unexported core() accessor confines implementations to
// this package and gives the scheduler (Queue) a uniform way to reach the
// shared state machine regardless of concrete kind — the Go equivalent of
// the "state-machine struct used by concrete variants via composition"
// design note, in place of class inheritance.
type Operation interface {
	// ID is a stable identity, useful for exclusivity-registry bookkeeping
	// and debug dumps.
	ID() uuid.UUID
	// Name is a human-readable label; defaults to the ID if never set.
	Name() string
	SetName(name string)

	// State returns the current lifecycle stage.
	State() State
	// Cancelled reports whether Cancel has been called. Sticky once true.
	Cancelled() bool
	// Errors returns a snapshot of the accumulated error list. Frozen once
	// State() == StateFinished.
	Errors() []error
	// Failed reports finished && len(Errors()) > 0.
	Failed() bool
	// Succeeded reports finished && !cancelled && len(Errors()) == 0.
	Succeeded() bool

	UserIntent() QoS
	SetUserIntent(QoS)

	// Dependencies returns a snapshot of this operation's direct
	// dependencies.
	Dependencies() []Operation
	AddDependency(dep Operation)
	RemoveDependency(dep Operation)

	AddObserver(o Observer)
	AddCondition(c Condition)
	Conditions() []Condition

	Cancel()
	CancelWithErrors(errs ...error)

	// Produce routes a runtime-produced child operation to whatever queue
	// is currently running this operation. If this operation was never
	// submitted to a queue, the child is not routed anywhere (DidProduce
	// observers still fire).
	Produce(child Operation)

	Debug() DebugRecord

	core() *Core
}

// runFunc is the subclass hook: the work a concrete operation performs. It
// receives the Core so it can call Produce, check Cancelled, etc., and a
// finish callback it must invoke exactly once — synchronously or from
// another goroutine — to move the operation from executing to finishing.
type runFunc func(op *Core, finish func(errs []error))

// Core is the state-machine struct embedded into every concrete operation
// kind (Basic, Condition, evaluator, GroupOperation, RetryOperation). It
// implements Operation directly.
type Core struct {
	id   uuid.UUID
	name string

	state   *fastState
	done    chan struct{}
	doneVal sync.Once

	mu         sync.RWMutex
	deps       []Operation
	conditions []Condition
	errs       []error
	cancelled  bool
	userIntent QoS

	bus   observerBus
	queue *Queue

	run runFunc

	finishOnce sync.Once
}

// NewCore constructs a bare operation with the given work function. Most
// callers reach for NewBasicOperation instead; NewCore is exported so other
// code in this module (Condition, GroupOperation, RetryOperation) can build
// new concrete kinds of Operation by embedding it.
func NewCore(name string, run func(op *Core, finish func(errs []error))) *Core {
	c := &Core{
		id:    uuid.New(),
		name:  name,
		state: newFastState(),
		done:  make(chan struct{}),
	}
	if run != nil {
		c.run = run
	} else {
		c.run = func(_ *Core, finish func([]error)) { finish(nil) }
	}
	return c
}

var _ Operation = (*Core)(nil)

func (c *Core) core() *Core { return c }

func (c *Core) ID() uuid.UUID { return c.id }

func (c *Core) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.name == "" {
		return c.id.String()
	}
	return c.name
}

func (c *Core) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *Core) State() State { return c.state.load() }

func (c *Core) Cancelled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cancelled
}

func (c *Core) Errors() []error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

func (c *Core) Failed() bool {
	return c.State() == StateFinished && len(c.Errors()) > 0
}

func (c *Core) Succeeded() bool {
	return c.State() == StateFinished && !c.Cancelled() && len(c.Errors()) == 0
}

func (c *Core) UserIntent() QoS {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userIntent
}

func (c *Core) SetUserIntent(q QoS) {
	c.mu.Lock()
	c.userIntent = q
	c.mu.Unlock()
}

func (c *Core) Dependencies() []Operation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Operation, len(c.deps))
	copy(out, c.deps)
	return out
}

// AddDependency records dep as a direct dependency. Meaningful only before
// the operation is submitted to a queue; the caller, not this method, is
// responsible for not adding dependencies to already-scheduled work.
func (c *Core) AddDependency(dep Operation) {
	if dep == nil || dep.core() == c {
		return
	}
	c.mu.Lock()
	c.deps = append(c.deps, dep)
	c.mu.Unlock()
}

func (c *Core) RemoveDependency(dep Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.deps {
		if d == dep {
			c.deps = append(c.deps[:i], c.deps[i+1:]...)
			return
		}
	}
}

func (c *Core) AddObserver(o Observer) { c.bus.add(c, o) }

func (c *Core) AddCondition(cond Condition) {
	c.mu.Lock()
	c.conditions = append(c.conditions, cond)
	c.mu.Unlock()
}

func (c *Core) Conditions() []Condition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Condition, len(c.conditions))
	copy(out, c.conditions)
	return out
}

// Cancel marks the operation cancelled. Non-blocking and idempotent: a
// second call observably does nothing.
func (c *Core) Cancel() { c.CancelWithErrors() }

func (c *Core) CancelWithErrors(errs ...error) {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	// Errors passed to cancel are recorded immediately, so they survive
	// even when execute (not this call) ends up driving the eventual
	// finish. Once finishing has begun the error list is frozen and they
	// are not recorded.
	if len(errs) > 0 && c.State() < StateFinishing {
		c.errs = append(c.errs, errs...)
	}
	c.mu.Unlock()

	c.bus.fireWillCancel(c, errs)
	c.bus.fireDidCancel(c, errs)

	// Cancellation from any state <= ready transitions directly to
	// finishing without invoking execute. Once executing, the running
	// work is responsible for observing Cancelled() and calling finish.
	switch c.State() {
	case StateInitialized, StatePending, StateEvaluatingConditions, StateReady:
		c.finish(nil)
	}
}

// Produce routes child to the enclosing queue, if any. Children are not
// dependencies of their producer. The child takes this operation's
// UserIntent. A no-op once this operation has already finished: there is
// no longer a live execute call to have produced it.
func (c *Core) Produce(child Operation) {
	if child == nil || c.State() == StateFinished {
		return
	}
	child.SetUserIntent(c.UserIntent())
	c.mu.RLock()
	q := c.queue
	c.mu.RUnlock()
	c.bus.fireDidProduce(c, child)
	if q != nil {
		q.routeProduced(c, child)
	}
}

// attachQueue records the enclosing queue so Produce can route children.
func (c *Core) attachQueue(q *Queue) {
	c.mu.Lock()
	c.queue = q
	c.mu.Unlock()
}

// markSubmitted transitions initialized -> pending.
func (c *Core) markSubmitted() { c.state.tryAdvance(StateInitialized, StatePending) }

func (c *Core) Debug() DebugRecord {
	deps := c.Dependencies()
	depRecords := make([]DebugRecord, 0, len(deps))
	for _, d := range deps {
		depRecords = append(depRecords, d.Debug())
	}
	conds := c.Conditions()
	condNames := make([]string, 0, len(conds))
	for _, cd := range conds {
		condNames = append(condNames, cd.Name())
	}
	return DebugRecord{
		Description: c.Name(),
		Properties: map[string]string{
			"id":        c.ID().String(),
			"state":     c.State().String(),
			"cancelled": boolString(c.Cancelled()),
			"failed":    boolString(c.Failed()),
		},
		Conditions:   condNames,
		Dependencies: depRecords,
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// willExecute runs the WillExecute observers, then the subclass's work
// function, which must eventually call finish.
func (c *Core) willExecute() {
	c.state.advance(StateExecuting)
	c.bus.fireWillExecute(c)
	c.run(c, c.finish)
}

// finish moves the operation through finishing -> finished exactly once,
// firing WillFinish during the transition and DidFinish once frozen.
func (c *Core) finish(errs []error) {
	c.finishOnce.Do(func() {
		c.mu.Lock()
		c.errs = append(c.errs, errs...)
		final := append([]error(nil), c.errs...)
		c.mu.Unlock()

		c.state.advance(StateFinishing)
		c.bus.fireWillFinish(c, final)

		c.state.advance(StateFinished)
		c.doneVal.Do(func() { close(c.done) })
		c.bus.fireDidFinish(c, final)
	})
}

// Basic is the plain concrete Operation: its work is exactly the runFunc
// supplied at construction.
type Basic struct{ *Core }

// NewBasicOperation builds an Operation whose execute hook is fn.
func NewBasicOperation(name string, fn func(op *Core, finish func(errs []error))) *Basic {
	return &Basic{Core: NewCore(name, fn)}
}

var _ Operation = (*Basic)(nil)
