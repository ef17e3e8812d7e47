package grouppool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTestBoom = errors.New("boom")

// testCompletion is a minimal Completion used by testExecutor.
type testCompletion struct {
	mu       sync.Mutex
	done     bool
	value    interface{}
	err      error
	observer func(value interface{}, err error)
}

func (c *testCompletion) OnComplete(observer func(value interface{}, err error)) {
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

func (c *testCompletion) finish(value interface{}, err error) {
	c.mu.Lock()
	c.done = true
	c.value, c.err = value, err
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer(value, err)
	}
}

// testExecutor runs every task on its own goroutine immediately. It is
// grounded on the same "run now, report later" contract as the
// package's Executor interface, without any pooling of its own, which
// keeps pool_test.go's assertions entirely about admission control
// rather than executor scheduling.
type testExecutor struct {
	mu       sync.Mutex
	shutdown bool
}

func (e *testExecutor) Run(ctx context.Context, fn Func, args interface{}) Completion {
	c := &testCompletion{}
	go func() {
		value, err := fn(ctx, args)
		c.finish(value, err)
	}()
	return c
}

func (e *testExecutor) Shutdown(ctx context.Context, drain bool) error {
	e.mu.Lock()
	e.shutdown = true
	e.mu.Unlock()
	return nil
}

func TestPool_PutBlocksUntilSlotAvailable(t *testing.T) {
	p := New(Config{Reserved: map[Tag]int{"ingest": 1}, Executor: &testExecutor{}})
	release := make(chan struct{})

	if _, err := p.Put(context.Background(), "ingest", func(ctx context.Context, args interface{}) (interface{}, error) {
		<-release
		return nil, nil
	}, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error from first Put: %v", err)
	}

	putReturned := make(chan struct{})
	go func() {
		_, _ = p.Put(context.Background(), "ingest", func(ctx context.Context, args interface{}) (interface{}, error) {
			return "second", nil
		}, nil, nil, nil)
		close(putReturned)
	}()

	select {
	case <-putReturned:
		t.Fatal("second Put should have blocked with the sole reservation occupied")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	select {
	case <-putReturned:
	case <-time.After(time.Second):
		t.Fatal("second Put never unblocked after the first task released its slot")
	}
}

func TestPool_PutRespectsContextCancellation(t *testing.T) {
	p := New(Config{Reserved: map[Tag]int{"ingest": 1}, Executor: &testExecutor{}})
	block := make(chan struct{})
	defer close(block)

	_, _ = p.Put(context.Background(), "ingest", func(ctx context.Context, args interface{}) (interface{}, error) {
		<-block
		return nil, nil
	}, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Put(ctx, "ingest", func(ctx context.Context, args interface{}) (interface{}, error) {
		return nil, nil
	}, nil, nil, nil)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestPool_StopRefusesFurtherPuts(t *testing.T) {
	p := New(Config{Reserved: map[Tag]int{Generic: 1}, Executor: &testExecutor{}})
	if err := p.Stop(true); err != nil {
		t.Fatalf("unexpected Stop error: %v", err)
	}

	_, err := p.Put(context.Background(), Generic, func(ctx context.Context, args interface{}) (interface{}, error) {
		return nil, nil
	}, nil, nil, nil)
	if err != ErrPoolStopped {
		t.Fatalf("expected ErrPoolStopped, got %v", err)
	}
}

func TestPool_JoinWaitsForPendingTasks(t *testing.T) {
	p := New(Config{Reserved: map[Tag]int{Generic: 2}, Executor: &testExecutor{}})
	release := make(chan struct{})

	for i := 0; i < 2; i++ {
		if _, err := p.Put(context.Background(), Generic, func(ctx context.Context, args interface{}) (interface{}, error) {
			<-release
			return nil, nil
		}, nil, nil, nil); err != nil {
			t.Fatalf("unexpected Put error: %v", err)
		}
	}

	joined := make(chan struct{})
	go func() {
		_ = p.Join(context.Background())
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("Join returned before in-flight tasks finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join never returned after tasks finished")
	}

	if p.Pending() != 0 {
		t.Fatalf("expected 0 pending after Join, got %d", p.Pending())
	}
}

func TestPool_IngestAppliesBackpressure(t *testing.T) {
	p := New(Config{Reserved: map[Tag]int{Generic: 1}, Executor: &testExecutor{}})

	var mu sync.Mutex
	var order []int
	running, maxRunning := 0, 0

	args := []interface{}{1, 2, 3}
	done := make(chan struct{})
	go func() {
		_, _ = p.Ingest(context.Background(), Generic, func(ctx context.Context, a interface{}) (interface{}, error) {
			mu.Lock()
			order = append(order, a.(int))
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return a, nil
		}, args, nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Ingest never completed")
	}

	if err := p.Join(context.Background()); err != nil {
		t.Fatalf("unexpected Join error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("expected all 3 tasks to run, got %d", len(order))
	}
	if maxRunning > 1 {
		t.Fatalf("expected at most 1 task in flight with a single generic slot, got %d", maxRunning)
	}
}

func TestPool_NextYieldsUnroutedOutcomes(t *testing.T) {
	p := New(Config{Reserved: map[Tag]int{Generic: 1}, Executor: &testExecutor{}})

	if _, err := p.Put(context.Background(), Generic, func(ctx context.Context, args interface{}) (interface{}, error) {
		return "hello", nil
	}, nil, nil, nil); err != nil {
		t.Fatalf("unexpected Put error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, ok, err := p.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected Next error: %v", err)
	}
	if !ok || out.Value != "hello" {
		t.Fatalf("expected outcome value 'hello', got ok=%v out=%+v", ok, out)
	}
}

func TestPool_AdjustGrowsReservationFromGeneric(t *testing.T) {
	p := New(Config{Reserved: map[Tag]int{"ingest": 0, Generic: 2}, Executor: &testExecutor{}})

	if _, err := p.Adjust("ingest", 1, true); err != nil {
		t.Fatalf("unexpected Adjust error: %v", err)
	}

	tags := p.Tags()
	if tags["ingest"] != 1 {
		t.Fatalf("expected ingest reservation to be 1, got %d", tags["ingest"])
	}
	if tags[Generic] != 1 {
		t.Fatalf("expected generic reservation to shrink to 1, got %d", tags[Generic])
	}
}
