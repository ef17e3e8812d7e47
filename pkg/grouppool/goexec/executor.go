// Package goexec provides a goroutine-backed grouppool.Executor. It
// bounds concurrent task execution with a semaphore the way NoiseFS's
// SimpleWorkerPool.ParallelXOR does, rather than routing work through
// a fixed pool of long-lived workers, so Run never has to wait for a
// worker to free up before accepting a task.
package goexec

import (
	"context"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/shadowmoose/grouppool/pkg/grouppool"
)

// Config configures an Executor.
type Config struct {
	// MaxConcurrency bounds how many task functions may run at once.
	// If 0, defaults to runtime.NumCPU().
	MaxConcurrency int

	// Breaker, if non-nil, guards admissions against an executor that
	// is failing tasks past its failure threshold. Task errors still
	// reach the caller normally; the breaker only refuses to even
	// start new work while open.
	Breaker *Breaker
}

// Executor is a grouppool.Executor backed by ordinary goroutines,
// bounded to at most MaxConcurrency concurrent task bodies.
type Executor struct {
	sem     chan struct{}
	breaker *Breaker

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
}

// New constructs an Executor ready to accept Run calls.
func New(cfg Config) *Executor {
	max := cfg.MaxConcurrency
	if max <= 0 {
		max = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		sem:     make(chan struct{}, max),
		breaker: cfg.Breaker,
		ctx:     ctx,
		cancel:  cancel,
	}
}

type completion struct {
	mu       sync.Mutex
	done     bool
	value    interface{}
	err      error
	observer func(value interface{}, err error)
}

func (c *completion) OnComplete(observer func(value interface{}, err error)) {
	c.mu.Lock()
	if c.done {
		value, err := c.value, c.err
		c.mu.Unlock()
		observer(value, err)
		return
	}
	c.observer = observer
	c.mu.Unlock()
}

func (c *completion) finish(value interface{}, err error) {
	c.mu.Lock()
	c.done = true
	c.value, c.err = value, err
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer(value, err)
	}
}

// Run starts fn on its own goroutine as soon as a concurrency slot is
// free, or immediately fails it if the breaker (when configured) is
// open. It never blocks the caller past spawning that goroutine. After
// Shutdown, Run fails every new task with grouppool.ErrPoolStopped.
func (e *Executor) Run(ctx context.Context, fn grouppool.Func, args interface{}) grouppool.Completion {
	c := &completion{}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		c.finish(nil, grouppool.ErrPoolStopped)
		return c
	}
	e.wg.Add(1)
	e.mu.Unlock()
	go func() {
		defer e.wg.Done()

		if e.breaker != nil {
			if err := e.breaker.Allow(); err != nil {
				c.finish(nil, err)
				return
			}
		}

		select {
		case e.sem <- struct{}{}:
		case <-e.ctx.Done():
			c.finish(nil, e.ctx.Err())
			return
		case <-ctx.Done():
			c.finish(nil, ctx.Err())
			return
		}
		defer func() { <-e.sem }()

		value, err := fn(ctx, args)
		if e.breaker != nil {
			e.breaker.Report(err)
		}
		c.finish(value, err)
	}()

	return c
}

// Shutdown stops accepting new work: with drain false it cancels the
// executor's internal context, which fails tasks still waiting for a
// concurrency slot (task bodies already running receive the caller's
// ctx, not this one, and run to completion), then waits for every
// spawned goroutine to return. With drain true it simply waits. Either way, Shutdown aggregates a breaker-open
// condition alongside any deadline the caller's ctx imposes, since
// both are independently useful signals to a caller deciding whether
// shutdown was clean.
func (e *Executor) Shutdown(ctx context.Context, drain bool) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil
	}
	e.shutdown = true
	e.mu.Unlock()

	if !drain {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	var result *multierror.Error
	select {
	case <-done:
	case <-ctx.Done():
		result = multierror.Append(result, ctx.Err())
	}

	if e.breaker != nil && e.breaker.State() == StateOpen {
		result = multierror.Append(result, ErrBreakerOpen)
	}

	return result.ErrorOrNil()
}
