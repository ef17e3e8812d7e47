package goexec

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// BreakerState is the current state of a Breaker.
type BreakerState int

const (
	// StateClosed allows requests through normally.
	StateClosed BreakerState = iota
	// StateOpen fails requests immediately without running them.
	StateOpen
	// StateHalfOpen allows a limited number of probe requests through
	// to test whether the underlying executor has recovered.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	FailureThreshold int64
	RecoveryTimeout  time.Duration
	SuccessThreshold int64
	MaxProbes        int64
	Name             string
}

// DefaultBreakerConfig returns sane defaults for guarding an executor's
// health, not for classifying individual task failures.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
		MaxProbes:        10,
		Name:             name,
	}
}

// BreakerStats reports a Breaker's current counters.
type BreakerStats struct {
	State           BreakerState
	Failures        int64
	Successes       int64
	TotalRequests   int64
	TotalFailures   int64
	StateChangedAt  time.Time
	LastFailureTime time.Time
}

// Breaker trips when the Executor it guards starts failing tasks past
// FailureThreshold, refusing further admissions until RecoveryTimeout
// has passed, then probing recovery with a handful of requests before
// fully closing again.
//
// This guards executor health, not task outcomes: a task's own error
// is always delivered to its caller through the normal pump routing
// regardless of breaker state. The breaker only decides whether new
// work should even be attempted against an executor that looks broken.
type Breaker struct {
	cfg BreakerConfig

	mu               sync.RWMutex
	state            BreakerState
	failures         int64
	successes        int64
	probesIssued     int64
	stateChangedAt   time.Time
	lastFailureTime  time.Time
	totalRequests    int64
	totalFailures    int64
}

// NewBreaker constructs a Breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultBreakerConfig(cfg.Name)
	}
	return &Breaker{cfg: cfg, state: StateClosed, stateChangedAt: time.Now()}
}

// ErrBreakerOpen is returned by Allow when the breaker is refusing
// admissions.
var ErrBreakerOpen = fmt.Errorf("goexec: circuit breaker open")

// Allow reports whether a new task may be attempted right now,
// transitioning Open to HalfOpen once RecoveryTimeout has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.stateChangedAt) >= b.cfg.RecoveryTimeout {
			b.setStateLocked(StateHalfOpen)
			return nil
		}
		return ErrBreakerOpen
	case StateHalfOpen:
		if atomic.LoadInt64(&b.probesIssued) < b.cfg.MaxProbes {
			atomic.AddInt64(&b.probesIssued, 1)
			return nil
		}
		return ErrBreakerOpen
	default:
		return ErrBreakerOpen
	}
}

// Report records the outcome of a task the Breaker allowed through.
func (b *Breaker) Report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	atomic.AddInt64(&b.totalRequests, 1)
	if err != nil {
		atomic.AddInt64(&b.totalFailures, 1)
		b.failures++
		b.lastFailureTime = time.Now()
		switch b.state {
		case StateClosed:
			if b.failures >= b.cfg.FailureThreshold {
				b.setStateLocked(StateOpen)
			}
		case StateHalfOpen:
			b.setStateLocked(StateOpen)
		}
		return
	}

	b.successes++
	if b.state == StateHalfOpen && b.successes >= b.cfg.SuccessThreshold {
		b.setStateLocked(StateClosed)
	}
}

func (b *Breaker) setStateLocked(s BreakerState) {
	b.state = s
	b.stateChangedAt = time.Now()
	b.failures = 0
	b.successes = 0
	atomic.StoreInt64(&b.probesIssued, 0)
}

// State returns the breaker's current state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() BreakerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BreakerStats{
		State:           b.state,
		Failures:        b.failures,
		Successes:       b.successes,
		TotalRequests:   atomic.LoadInt64(&b.totalRequests),
		TotalFailures:   atomic.LoadInt64(&b.totalFailures),
		StateChangedAt:  b.stateChangedAt,
		LastFailureTime: b.lastFailureTime,
	}
}

// Reset forces the breaker back to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(StateClosed)
}

func (b *Breaker) Name() string {
	return b.cfg.Name
}
