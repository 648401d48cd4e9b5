package ordersdemo

import (
	"context"

	"github.com/google/uuid"

	"prescription-order-service/internal/concurrency"
	"prescription-order-service/internal/resilience"
)

// ResilientExecutor adapts *resilience.Executor to the narrow executor
// interface Service calls through, fixing Kind to PrimaryStore — every
// order read or write in this example is a PrimaryStore-kind call (spec
// section 4.1's dependency classification).
type ResilientExecutor struct {
	exec *resilience.Executor
}

func NewResilientExecutor(exec *resilience.Executor) *ResilientExecutor {
	return &ResilientExecutor{exec: exec}
}

func (r *ResilientExecutor) Run(ctx context.Context, op func(context.Context) ([]byte, error)) ([]byte, error) {
	return resilience.Execute(ctx, r.exec, resilience.PrimaryStore, op)
}

// PooledExecutor runs every store call as a Task submitted to the
// adaptive worker pool, then blocks for its result. This is what gives
// the admission controller's thread-pool-utilization and pending-work-
// depth signals (internal/admission/signals.go) a real source: without
// routing work through pool.Submit, the queue these signals read from
// never holds anything and both pressure readings stay at zero
// regardless of actual load.
type PooledExecutor struct {
	pool *concurrency.AdaptiveWorkerPool
	next executor
}

func NewPooledExecutor(pool *concurrency.AdaptiveWorkerPool, next executor) *PooledExecutor {
	return &PooledExecutor{pool: pool, next: next}
}

func (p *PooledExecutor) Run(ctx context.Context, op func(context.Context) ([]byte, error)) ([]byte, error) {
	type outcome struct {
		data []byte
		err  error
	}
	done := make(chan outcome, 1)

	task := concurrency.Task{
		ID: uuid.NewString(),
		Execute: func(context.Context) error {
			data, err := p.next.Run(ctx, op)
			done <- outcome{data, err}
			return err
		},
	}

	if err := p.pool.Submit(task); err != nil {
		return nil, err
	}

	select {
	case o := <-done:
		return o.data, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
