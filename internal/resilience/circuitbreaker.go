package resilience

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// BreakerPolicy configures the sliding-window circuit breaker for one
// Kind (spec section 4.1's "Circuit breaker" row).
type BreakerPolicy struct {
	Window           time.Duration
	MinimumThroughput int
	FailureRatio      float64
	OpenDuration      time.Duration
}

// State is the circuit breaker state machine: Closed -> Open on ratio
// trip; Open -> HalfOpen after OpenDuration elapses; HalfOpen -> Closed
// on success, HalfOpen -> Open on failure.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// ErrBreakerOpen is returned when a call is rejected without being
// attempted because the breaker for its kind is open.
var ErrBreakerOpen = fmt.Errorf("circuit breaker is open")

// breaker is the per-kind sliding-window circuit breaker. State is held
// in an atomic.Value so readers (every call on the hot path) never take
// a lock; only transitions (rare) take stateMu. Adapted from the
// teacher's CircuitBreaker (circuit_breaker_decorator.go), generalized
// from a single hardcoded repository decorator to one instance per Kind
// sharing a policy table, and re-keyed onto the spec's MinimumThroughput/
// FailureRatio/OpenDuration naming.
type breaker struct {
	kind   Kind
	policy BreakerPolicy
	logger *zap.Logger

	state           atomic.Value // State
	stateMu         sync.Mutex
	lastTransition  time.Time
	halfOpenInFlight atomic.Bool

	window *slidingWindow
}

func newBreaker(kind Kind, policy BreakerPolicy, logger *zap.Logger) *breaker {
	b := &breaker{
		kind:           kind,
		policy:         policy,
		logger:         logger,
		lastTransition: time.Now(),
		window:         newSlidingWindow(policy.Window),
	}
	b.state.Store(Closed)
	return b
}

func (b *breaker) currentState() State { return b.state.Load().(State) }

// allow reports whether a call may proceed, transitioning Open->HalfOpen
// when the open duration has elapsed. Only one half-open probe is
// admitted at a time.
func (b *breaker) allow() bool {
	switch b.currentState() {
	case Closed:
		return true
	case HalfOpen:
		return b.halfOpenInFlight.CompareAndSwap(false, true)
	case Open:
		b.stateMu.Lock()
		defer b.stateMu.Unlock()
		if b.currentState() != Open {
			return false
		}
		if time.Since(b.lastTransition) >= b.policy.OpenDuration {
			b.transitionLocked(HalfOpen)
			return b.halfOpenInFlight.CompareAndSwap(false, true)
		}
		return false
	default:
		return false
	}
}

// record reports the outcome of an admitted call, driving transitions.
func (b *breaker) record(success bool) {
	state := b.currentState()

	if state == HalfOpen {
		b.halfOpenInFlight.Store(false)
		b.stateMu.Lock()
		if success {
			b.transitionLocked(Closed)
			b.window.reset()
		} else {
			b.transitionLocked(Open)
		}
		b.stateMu.Unlock()
		return
	}

	b.window.record(success)

	if state == Closed {
		stats := b.window.stats()
		if stats.total >= b.policy.MinimumThroughput {
			ratio := float64(stats.failures) / float64(stats.total)
			if ratio >= b.policy.FailureRatio {
				b.stateMu.Lock()
				if b.currentState() == Closed {
					b.transitionLocked(Open)
				}
				b.stateMu.Unlock()
			}
		}
	}
}

// transitionLocked must be called with stateMu held.
func (b *breaker) transitionLocked(to State) {
	from := b.currentState()
	if from == to {
		return
	}
	b.state.Store(to)
	b.lastTransition = time.Now()

	if to == Open {
		b.logger.Error("circuit breaker opened",
			zap.String("kind", string(b.kind)),
			zap.String("from", from.String()),
		)
	} else {
		b.logger.Info("circuit breaker transitioned",
			zap.String("kind", string(b.kind)),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
}

// slidingWindow buckets successes/failures by second and discards
// buckets older than the window, adapted from the teacher's
// slidingWindow in circuit_breaker_decorator.go.
type slidingWindow struct {
	size    time.Duration
	mu      sync.Mutex
	buckets []bucket
}

type bucket struct {
	at       time.Time
	successes int
	failures  int
}

type windowStats struct {
	total    int
	failures int
}

func newSlidingWindow(size time.Duration) *slidingWindow {
	return &slidingWindow{size: size}
}

func (w *slidingWindow) record(success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.evict(now)

	bucketTime := now.Truncate(time.Second)
	for i := range w.buckets {
		if w.buckets[i].at.Equal(bucketTime) {
			if success {
				w.buckets[i].successes++
			} else {
				w.buckets[i].failures++
			}
			return
		}
	}

	nb := bucket{at: bucketTime}
	if success {
		nb.successes = 1
	} else {
		nb.failures = 1
	}
	w.buckets = append(w.buckets, nb)
}

func (w *slidingWindow) stats() windowStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-w.size)

	var s windowStats
	for _, b := range w.buckets {
		if b.at.After(cutoff) {
			s.total += b.successes + b.failures
			s.failures += b.failures
		}
	}
	return s
}

func (w *slidingWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buckets = nil
}

func (w *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.size)
	i := 0
	for i < len(w.buckets) && w.buckets[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.buckets = w.buckets[i:]
	}
}
