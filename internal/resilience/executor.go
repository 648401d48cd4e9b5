package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"prescription-order-service/internal/ports"
	"prescription-order-service/internal/problem"
)

// Policy bundles the retry, breaker, and timeout configuration for one
// Kind (spec section 4.1's per-kind policy table).
type Policy struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
	Timeout time.Duration
}

// DefaultPolicies returns the spec's named defaults for PrimaryStore and
// Cache.
func DefaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		PrimaryStore: {
			Retry:   RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second, JitterFactor: 0.25},
			Breaker: BreakerPolicy{Window: 10 * time.Second, MinimumThroughput: 10, FailureRatio: 0.5, OpenDuration: 30 * time.Second},
			Timeout: 30 * time.Second,
		},
		Cache: {
			Retry:   RetryPolicy{MaxAttempts: 2, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, JitterFactor: 0.25},
			Breaker: BreakerPolicy{Window: 10 * time.Second, MinimumThroughput: 20, FailureRatio: 0.5, OpenDuration: 15 * time.Second},
			Timeout: 5 * time.Second,
		},
	}
}

// Executor wraps every outbound call in retry, circuit-breaker, and
// timeout protection, per the Kind-keyed policy table. Generalizes the
// teacher's per-repository-method CircuitBreakerNodeRepository/
// RetryNodeRepository decorator pair (circuit_breaker_decorator.go,
// retry_decorator.go) into one generic, Kind-keyed executor instead of a
// decorator wrapping every repository method by hand.
type Executor struct {
	policies  map[Kind]Policy
	breakers  map[Kind]*breaker
	transient map[string]bool
	logger    *zap.Logger
	metrics   ports.Metrics
	tracer    trace.Tracer
	rng       *rand.Rand
}

// DefaultTransientCategories is the default caller-supplied table of error category
// names classified as retryable (spec section 4.1: "a table keyed by
// error category names supplied by the caller's backend adapter").
// Backend adapters tag their errors with one of these category strings
// via a CategorizedError; anything untagged or not in the table surfaces
// as PermanentBackend.
func DefaultTransientCategories() map[string]bool {
	return map[string]bool{
		"connection":        true,
		"execution-timeout": true,
		"server-busy":       true,
		"throttled":         true,
	}
}

func NewExecutor(policies map[Kind]Policy, transient map[string]bool, logger *zap.Logger, metrics ports.Metrics) *Executor {
	breakers := make(map[Kind]*breaker, len(policies))
	for kind, p := range policies {
		breakers[kind] = newBreaker(kind, p.Breaker, logger)
	}
	return &Executor{
		policies:  policies,
		breakers:  breakers,
		transient: transient,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("prescription-order-service/resilience"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CategorizedError lets a backend adapter tag an error with the category
// name the Executor's transient table is keyed on, without the Executor
// needing to know the adapter's concrete error types.
type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string { return e.Err.Error() }
func (e *CategorizedError) Unwrap() error { return e.Err }

func (ex *Executor) isTransient(err error) bool {
	ce, ok := err.(*CategorizedError)
	if !ok {
		return false
	}
	return ex.transient[ce.Category]
}

// Execute runs op under the named Kind's retry/breaker/timeout policy.
// op must be idempotent-on-retry unless retries is forced to 0 by the
// caller passing a policy with MaxAttempts: 1 for that call site (spec
// section 4.1's non-idempotent caveat).
func Execute[T any](ctx context.Context, ex *Executor, kind Kind, op func(context.Context) (T, error)) (T, error) {
	var zero T

	policy, ok := ex.policies[kind]
	if !ok {
		return zero, problem.New(problem.PermanentBackend, "UNKNOWN_KIND", "no policy configured for dependency kind").WithOperation(string(kind))
	}
	cb := ex.breakers[kind]

	var lastErr error
	for attempt := 0; attempt < policy.Retry.MaxAttempts; attempt++ {
		if !cb.allow() {
			ex.metrics.IncCounter("resilience_breaker_rejected_total", map[string]string{"kind": string(kind)})
			return zero, problem.NewTransient("BREAKER_OPEN", "dependency circuit breaker is open", ErrBreakerOpen, policy.Breaker.OpenDuration).WithOperation(string(kind))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		spanCtx, span := ex.tracer.Start(attemptCtx, "resilience.execute",
			trace.WithAttributes(
				attribute.String("kind", string(kind)),
				attribute.Int("attempt", attempt),
				attribute.String("breaker_state", cb.currentState().String()),
			),
		)

		start := time.Now()
		result, err := op(spanCtx)
		duration := time.Since(start)
		cancel()

		ex.metrics.ObserveDuration("resilience_call_duration_seconds", map[string]string{"kind": string(kind)}, duration)

		if err == nil {
			cb.record(true)
			span.End()
			return result, nil
		}

		span.RecordError(err)
		span.End()
		cb.record(false)
		lastErr = err

		if ctx.Err() != nil {
			return zero, problem.NewTimeoutExceeded("DEADLINE_EXCEEDED", "operation deadline exceeded").WithOperation(string(kind)).WithCause(ctx.Err())
		}

		if !ex.isTransient(err) {
			ex.logger.Info("non-transient failure, not retrying",
				zap.String("kind", string(kind)), zap.Error(err))
			return zero, problem.NewPermanentBackend("BACKEND_ERROR", "dependency call failed", err).WithOperation(string(kind))
		}

		if attempt == policy.Retry.MaxAttempts-1 {
			break
		}

		delay := policy.Retry.backoffDelay(attempt, ex.rng)
		ex.logger.Info("retrying after transient failure",
			zap.String("kind", string(kind)), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, problem.NewTimeoutExceeded("DEADLINE_EXCEEDED", "operation deadline exceeded while backing off").WithOperation(string(kind)).WithCause(sleepErr)
		}
	}

	ex.metrics.IncCounter("resilience_exhausted_total", map[string]string{"kind": string(kind)})
	return zero, problem.NewTransient("RETRIES_EXHAUSTED", "dependency call failed after retries", lastErr, 0).WithOperation(string(kind))
}
