package grouppool

import (
	"context"
	"sync"
	"sync/atomic"
)

// resultQueue is an unbounded FIFO of Outcomes consumed by Pool's
// range-style iterator. It is deliberately not a buffered channel:
// admission backpressure already bounds how much work can be in
// flight, but a caller that never drains results (and never sets a
// default callback) must still be able to keep submitting until the
// ledger itself pushes back.
type resultQueue struct {
	mu     sync.Mutex
	items  []Outcome
	notify chan struct{}
	closed bool
}

func newResultQueue() *resultQueue {
	return &resultQueue{notify: make(chan struct{})}
}

func (q *resultQueue) push(o Outcome) {
	q.mu.Lock()
	q.items = append(q.items, o)
	q.wakeLocked()
	q.mu.Unlock()
}

func (q *resultQueue) closeQueue() {
	q.mu.Lock()
	q.closed = true
	q.wakeLocked()
	q.mu.Unlock()
}

func (q *resultQueue) wakeLocked() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// next blocks until an Outcome is available, the queue is closed
// (returns ok=false), or ctx is done.
func (q *resultQueue) next(ctx context.Context) (Outcome, bool, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			o := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return o, true, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Outcome{}, false, nil
		}
		ch := q.notify
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return Outcome{}, false, ctx.Err()
		}
	}
}

// pump routes a completed task's outcome back to its destination,
// releases the ledger slot it held, and marks it no longer pending, in
// that exact order: a per-task or default callback must see the result
// before the slot it occupied becomes available to a waiting
// admission, and the slot must be released before Join's pending
// counter reaches zero.
type pump struct {
	ledger         *ledger
	queue          *resultQueue
	defaultOnData  OnData
	defaultOnError OnError
	pending        *sync.WaitGroup
	observer       atomic.Pointer[Observer]
}

func newPump(l *ledger, pending *sync.WaitGroup) *pump {
	p := &pump{ledger: l, queue: newResultQueue(), pending: pending}
	var o Observer = noopObserver{}
	p.observer.Store(&o)
	return p
}

// complete is registered as the Completion observer for every admitted
// task. It must be called exactly once per task.
func (p *pump) complete(t *task, value interface{}, err error) {
	p.route(t, value, err)
	p.ledger.release(t.tag, t.borrowed)
	(*p.observer.Load()).Released(t.tag, t.borrowed)
	p.pending.Done()
}

// route picks one destination for a task's outcome: its own per-task
// callback for this outcome's kind if it registered one, else the
// pool's default callback for that kind if one is configured, else the
// iterable result queue. Success and failure are routed independently:
// a task that only supplied onData still falls through to the
// pool-default error callback (then the queue) on failure, instead of
// having its error dropped just because an onData callback happened
// to be registered.
func (p *pump) route(t *task, value interface{}, err error) {
	if err != nil {
		switch {
		case t.onError != nil:
			t.onError(t.tag, t.args, err)
		case p.defaultOnError != nil:
			p.defaultOnError(t.tag, t.args, err)
		default:
			p.queue.push(Outcome{ID: t.id, Tag: t.tag, Args: t.args, Err: err})
		}
		return
	}

	switch {
	case t.onData != nil:
		t.onData(t.tag, t.args, value)
	case p.defaultOnData != nil:
		p.defaultOnData(t.tag, t.args, value)
	default:
		p.queue.push(Outcome{ID: t.id, Tag: t.tag, Args: t.args, Value: value})
	}
}
