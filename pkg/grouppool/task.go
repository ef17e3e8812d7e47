package grouppool

import (
	"context"

	"github.com/google/uuid"
)

// Func is the unit of work submitted to a Pool. It receives the
// context passed to Put/Ingest and the args supplied alongside it.
type Func func(ctx context.Context, args interface{}) (interface{}, error)

// Outcome is the completed result of one admitted task, delivered
// either to a per-task callback, the pool's default callback, or the
// iterable result queue. ID correlates it back to the TaskHandle
// returned by Put, including for out-of-band consumers such as an
// audit sink.
type Outcome struct {
	ID    uuid.UUID
	Tag   Tag
	Args  interface{}
	Value interface{}
	Err   error
}

// TaskHandle identifies one admitted unit of work.
type TaskHandle struct {
	ID  uuid.UUID
	Tag Tag
}

// OnData is invoked with a task's return value when it completes
// without error.
type OnData func(tag Tag, args interface{}, value interface{})

// OnError is invoked with a task's error when it completes with one.
type OnError func(tag Tag, args interface{}, err error)

// task is the pool's internal bookkeeping record for one admitted
// unit of work: enough to route its completion back through the pump
// once the executor finishes running it.
type task struct {
	id       uuid.UUID
	tag      Tag
	borrowed bool
	args     interface{}
	fn       Func
	onData   OnData
	onError  OnError
}
