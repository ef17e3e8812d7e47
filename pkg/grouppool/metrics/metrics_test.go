package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shadowmoose/grouppool/pkg/grouppool"
)

type fakeExecutor struct{}

type fakeCompletion struct{}

func (c *fakeCompletion) OnComplete(observer func(value interface{}, err error)) {
	observer(nil, nil)
}

func (fakeExecutor) Run(ctx context.Context, fn grouppool.Func, args interface{}) grouppool.Completion {
	fn(ctx, args)
	return &fakeCompletion{}
}

func (fakeExecutor) Shutdown(ctx context.Context, drain bool) error { return nil }

func TestRecorder_CollectsGaugesAndCounters(t *testing.T) {
	pool := grouppool.New(grouppool.Config{
		Reserved: map[grouppool.Tag]int{"ingest": 1},
		Executor: fakeExecutor{},
	})
	rec := NewRecorder(pool, "test", "grouppool")
	pool.SetObserver(rec)

	if _, err := pool.Put(context.Background(), "ingest", func(ctx context.Context, args interface{}) (interface{}, error) {
		return nil, nil
	}, nil, nil, nil); err != nil {
		t.Fatalf("unexpected Put error: %v", err)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(rec); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_grouppool_admitted_total" {
			found = true
			for _, m := range mf.GetMetric() {
				if m.GetCounter().GetValue() != 1 {
					t.Fatalf("expected admitted_total=1, got %v", m.GetCounter().GetValue())
				}
			}
		}
	}
	if !found {
		t.Fatal("expected test_grouppool_admitted_total in gathered metrics")
	}
}
