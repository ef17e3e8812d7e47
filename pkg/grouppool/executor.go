package grouppool

import "context"

// Completion is returned by Executor.Run for one submitted task. The
// executor guarantees OnComplete's observer fires exactly once, even
// if it is registered after the task has already finished.
type Completion interface {
	// OnComplete registers observer to receive the task's result.
	// Implementations must still invoke observer exactly once if the
	// task had already completed by the time OnComplete is called.
	OnComplete(observer func(value interface{}, err error))
}

// Executor is the external collaborator that actually runs admitted
// work. Pool only ever holds one Executor and never runs goroutines of
// its own to execute task bodies; it just decides, via the ledger,
// whether a task is allowed to reach the executor yet.
//
// Implementations are free to run fn synchronously, on a goroutine
// pool, or by dispatching to a remote worker, as long as Run never
// blocks past the point of having accepted the task for execution and
// Shutdown waits for (or cancels) everything already accepted.
type Executor interface {
	// Run starts fn(ctx, args) and returns a Completion that will
	// eventually report its outcome. Run itself must not block on fn's
	// completion.
	Run(ctx context.Context, fn Func, args interface{}) Completion

	// Shutdown stops accepting new work. If drain is true it waits for
	// everything already running to finish; otherwise it cancels
	// outstanding work as soon as practical. Shutdown is idempotent.
	Shutdown(ctx context.Context, drain bool) error
}
