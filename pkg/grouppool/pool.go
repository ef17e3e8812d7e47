package grouppool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Config configures a new Pool. Reserved maps each tag to its initial
// reservation; the Generic tag need not be present explicitly but
// should be given a nonzero reservation if any overflow borrowing is
// desired. OnData and OnError are the pool-wide default callbacks used
// for tasks that register none of their own.
type Config struct {
	Reserved map[Tag]int
	Executor Executor
	OnData   OnData
	OnError  OnError

	// Observer, if non-nil, is notified of every admission, refusal
	// and release. Typically a metrics recorder.
	Observer Observer
}

// Pool is the tagged, elastic worker pool described by the package
// doc: Put/Ingest admit work through the ledger, the configured
// Executor actually runs it, and the pump routes each completion back
// to a callback or the result queue.
type Pool struct {
	ledger   *ledger
	pump     *pump
	executor Executor

	pending  sync.WaitGroup
	observer atomic.Pointer[Observer]

	mu      sync.RWMutex
	stopped bool
}

// New constructs a Pool. The Executor must be supplied by the caller;
// Pool never spawns goroutines to run task bodies itself.
func New(cfg Config) *Pool {
	l := newLedger(cfg.Reserved)
	var observer Observer = noopObserver{}
	if cfg.Observer != nil {
		observer = cfg.Observer
	}
	p := &Pool{
		ledger:   l,
		executor: cfg.Executor,
	}
	p.observer.Store(&observer)
	p.pump = newPump(l, &p.pending)
	p.pump.observer.Store(&observer)
	p.pump.defaultOnData = cfg.OnData
	p.pump.defaultOnError = cfg.OnError
	return p
}

// Put blocks until tag has an available slot (own reservation or, if
// saturated, a borrow from the generic overflow), then hands fn to the
// Executor. It returns ErrPoolStopped if Stop has already been called,
// or ctx.Err() if ctx is cancelled while waiting for admission.
//
// onData and onError, if non-nil, receive this task's outcome instead
// of the pool's default callbacks. Success and failure are routed
// separately: when the callback for the outcome's kind is nil and the
// pool has no default for that kind either, the outcome is pushed onto
// the result queue for Next to return.
func (p *Pool) Put(ctx context.Context, tag Tag, fn Func, args interface{}, onData OnData, onError OnError) (TaskHandle, error) {
	for {
		p.mu.RLock()
		stopped := p.stopped
		p.mu.RUnlock()
		if stopped {
			return TaskHandle{}, ErrPoolStopped
		}

		admission := p.ledger.tryAdmit(tag)
		if admission.Admitted {
			(*p.observer.Load()).Admitted(tag, admission.Borrowed)
			t := &task{
				id:       uuid.New(),
				tag:      tag,
				borrowed: admission.Borrowed,
				args:     args,
				fn:       fn,
				onData:   onData,
				onError:  onError,
			}
			p.pending.Add(1)
			completion := p.executor.Run(ctx, fn, args)
			completion.OnComplete(func(value interface{}, err error) {
				p.pump.complete(t, value, err)
			})
			return TaskHandle{ID: t.id, Tag: tag}, nil
		}
		(*p.observer.Load()).Refused(tag)

		wait := p.ledger.waitChan()
		select {
		case <-wait:
		case <-ctx.Done():
			return TaskHandle{}, ctx.Err()
		}
	}
}

// Ingest submits one task per element of argsList, in order, blocking
// on each Put in turn. Because Put itself is the backpressure point,
// Ingest never gets further ahead of the pool's capacity than a single
// pending admission. It returns the handles of every task admitted
// before an error (context cancellation or ErrPoolStopped) ended the
// submission.
func (p *Pool) Ingest(ctx context.Context, tag Tag, fn Func, argsList []interface{}, onData OnData, onError OnError) ([]TaskHandle, error) {
	handles := make([]TaskHandle, 0, len(argsList))
	for _, args := range argsList {
		h, err := p.Put(ctx, tag, fn, args, onData, onError)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Adjust changes tag's reservation to newSize. When useGenericSlots is
// true, the delta is funded from (or returned to) the generic pool's
// reservation instead of being a free-standing change; it fails with
// ErrInsufficientGeneric if shrinking the generic pool would drop it
// below capacity already committed elsewhere.
func (p *Pool) Adjust(tag Tag, newSize int, useGenericSlots bool) (ResizeReport, error) {
	return p.ledger.resize(tag, newSize, useGenericSlots)
}

// Join blocks until every admitted task has completed, or ctx is done.
func (p *Pool) Join(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop prevents further admissions. If drain is true it waits for
// in-flight tasks to finish before returning; otherwise it asks the
// Executor to cancel outstanding work and returns once that request
// has been issued. Stop is idempotent and safe to call more than once.
func (p *Pool) Stop(drain bool) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	err := p.executor.Shutdown(context.Background(), drain)
	if drain {
		p.pending.Wait()
	}
	p.pump.queue.closeQueue()
	return err
}

// Next returns the next unrouted Outcome, blocking until one is
// available, the pool is stopped and drained, or ctx is done. Its
// second return is false once the queue is closed and empty.
//
// Next only ever yields outcomes for which neither the task nor the
// pool has a callback of the outcome's kind (onData for a success,
// onError for a failure);
// mixing iteration with callbacks for the same tag is harmless but
// Next will never see a callback-routed outcome.
func (p *Pool) Next(ctx context.Context) (Outcome, bool, error) {
	return p.pump.queue.next(ctx)
}

// Pending returns the total number of tasks currently admitted and
// running across all tags.
func (p *Pool) Pending() int {
	return p.ledger.pendingTotal()
}

// Tags returns a snapshot of each tag's current reservation.
func (p *Pool) Tags() map[Tag]int {
	return p.ledger.snapshot()
}

// SetObserver replaces the pool's Observer. It is safe to call after
// construction, e.g. once a metrics Recorder has been built from a
// reference to this same Pool.
func (p *Pool) SetObserver(observer Observer) {
	if observer == nil {
		observer = noopObserver{}
	}
	p.observer.Store(&observer)
	p.pump.observer.Store(&observer)
}

// Stats returns a snapshot of every tag's reserved/in-use/borrowed
// counters, for dashboards and the admin API.
func (p *Pool) Stats() map[Tag]TagStats {
	return p.ledger.statsSnapshot()
}
