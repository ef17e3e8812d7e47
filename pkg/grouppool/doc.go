// Package grouppool implements a tagged, elastic worker pool.
//
// A pool is partitioned into named groups, each holding a reserved number
// of execution slots. A designated generic group acts as overflow capacity
// that any tagged group may borrow from once its own reservation is
// saturated. Group sizes can be adjusted while work is in flight without
// cancelling running tasks.
//
// The package is organized the way NoiseFS organizes its worker packages:
// a small set of focused types (ledger, Executor, pump, Pool) instead of
// one monolithic struct. Pool orchestrates the other three; ledger owns
// all slot accounting; Executor is an external collaborator supplied by
// the caller; pump routes completions back to callbacks or the result
// queue.
//
// Basic usage:
//
//	p := grouppool.New(grouppool.Config{
//		Reserved: map[grouppool.Tag]int{
//			grouppool.Generic: 4,
//			"ingest":          2,
//		},
//		Executor: goexec.New(goexec.Config{}),
//	})
//	defer p.Stop(true)
//
//	handle, err := p.Put(context.Background(), "ingest", func(ctx context.Context, args interface{}) (interface{}, error) {
//		return doWork(args)
//	}, args, nil, nil)
package grouppool
