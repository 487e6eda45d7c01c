package operations

import (
	"context"

	"github.com/joeycumines/go-microbatch"
)

// OperationBatcher coalesces rapid-fire Queue submissions into small
// batches, then admits each batch with a single Queue.AddAll call. Useful
// when a producer (e.g. a GroupOperation reacting to external events, or a
// RetryGenerator under heavy load) calls Submit far more often than the
// queue's admission algorithm needs to run.
type OperationBatcher struct {
	queue   *Queue
	batcher *microbatch.Batcher[Operation]
}

// NewOperationBatcher wires a microbatch.Batcher whose BatchProcessor admits
// each collected batch to queue in one AddAll call. config may be nil, in
// which case microbatch's defaults apply (16 jobs or 50ms, whichever first).
func NewOperationBatcher(queue *Queue, config *microbatch.BatcherConfig) *OperationBatcher {
	ob := &OperationBatcher{queue: queue}
	ob.batcher = microbatch.NewBatcher(config, func(_ context.Context, ops []Operation) error {
		queue.AddAll(ops...)
		return nil
	})
	return ob
}

// Submit enqueues op for the next batch, blocking only long enough to join a
// pending batch (not for the operation to run). Call the batcher's Queue's
// Wait, or poll Operation.State, to observe the eventual outcome, same as a
// direct Queue.Add.
func (ob *OperationBatcher) Submit(ctx context.Context, op Operation) error {
	_, err := ob.batcher.Submit(ctx, op)
	return err
}

// Close stops accepting submissions and waits for any in-flight batch to be
// admitted.
func (ob *OperationBatcher) Close() error {
	return ob.batcher.Close()
}
